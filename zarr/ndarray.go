package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// NDArray is a dense, C-ordered, little-endian array held in memory.
// It is the value type returned by every read.
type NDArray struct {
	DType string
	Shape []int
	Data  []byte
}

// Element is the set of Go types that map onto a fixed-width dtype.
type Element interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// NewNDArray checks that data holds exactly prod(shape) items of dtype.
func NewNDArray(dtype string, shape []int, data []byte) (NDArray, error) {
	size, err := itemSize(dtype)
	if err != nil {
		return NDArray{}, err
	}
	if want := product(shape) * size; len(data) != want {
		return NDArray{}, fmt.Errorf("data length %d does not match shape %v of %s (%d bytes)", len(data), shape, dtype, want)
	}
	return NDArray{DType: dtype, Shape: append([]int(nil), shape...), Data: data}, nil
}

// FromSlice builds an NDArray from a flat slice. Without a shape the
// result is one-dimensional.
func FromSlice[T Element](flat []T, shape ...int) (NDArray, error) {
	if len(shape) == 0 {
		shape = []int{len(flat)}
	}
	if product(shape) != len(flat) {
		return NDArray{}, fmt.Errorf("shape %v does not hold %d elements", shape, len(flat))
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, flat); err != nil {
		return NDArray{}, fmt.Errorf("failed to encode data: %w", err)
	}
	return NDArray{DType: dtypeOf(flat), Shape: append([]int(nil), shape...), Data: buf.Bytes()}, nil
}

func dtypeOf(flat any) string {
	switch flat.(type) {
	case []bool:
		return "|b1"
	case []int8:
		return "|i1"
	case []uint8:
		return "|u1"
	case []int16:
		return "<i2"
	case []uint16:
		return "<u2"
	case []int32:
		return "<i4"
	case []uint32:
		return "<u4"
	case []int64:
		return "<i8"
	case []uint64:
		return "<u8"
	case []float32:
		return "<f4"
	case []float64:
		return "<f8"
	}
	return ""
}

// Clone returns a deep copy.
func (a NDArray) Clone() NDArray {
	return NDArray{
		DType: a.DType,
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]byte(nil), a.Data...),
	}
}

// Len is the size of the first dimension, 0 for a scalar.
func (a NDArray) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Size is the total number of elements.
func (a NDArray) Size() int {
	return product(a.Shape)
}

func (a NDArray) rowBytes() int {
	size, _ := itemSize(a.DType)
	if len(a.Shape) == 0 {
		return size
	}
	return product(a.Shape[1:]) * size
}

// Row returns row i as a view sharing the backing bytes.
func (a NDArray) Row(i int) (NDArray, error) {
	if len(a.Shape) == 0 {
		return NDArray{}, fmt.Errorf("cannot index a scalar")
	}
	if i < 0 || i >= a.Shape[0] {
		return NDArray{}, fmt.Errorf("%w: row %d, length %d", ErrOutOfBounds, i, a.Shape[0])
	}
	rb := a.rowBytes()
	return NDArray{
		DType: a.DType,
		Shape: append([]int(nil), a.Shape[1:]...),
		Data:  a.Data[i*rb : (i+1)*rb],
	}, nil
}

// Take gathers rows in the given order into a new array.
func (a NDArray) Take(rows []int) (NDArray, error) {
	if len(a.Shape) == 0 {
		return NDArray{}, fmt.Errorf("cannot index a scalar")
	}
	rb := a.rowBytes()
	out := make([]byte, 0, len(rows)*rb)
	for _, r := range rows {
		if r < 0 || r >= a.Shape[0] {
			return NDArray{}, fmt.Errorf("%w: row %d, length %d", ErrOutOfBounds, r, a.Shape[0])
		}
		out = append(out, a.Data[r*rb:(r+1)*rb]...)
	}
	shape := append([]int{len(rows)}, a.Shape[1:]...)
	return NDArray{DType: a.DType, Shape: shape, Data: out}, nil
}

// At indexes successive dimensions, so At(0, 0) is element 0 of row 0.
func (a NDArray) At(idx ...int) (NDArray, error) {
	cur := a
	for _, i := range idx {
		next, err := cur.Row(i)
		if err != nil {
			return NDArray{}, err
		}
		cur = next
	}
	return cur, nil
}

// Equal reports whether both arrays hold the same dtype, shape and bytes.
func (a NDArray) Equal(b NDArray) bool {
	if a.DType != b.DType || len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return bytes.Equal(a.Data, b.Data)
}

// Flat decodes the data into a typed flat slice such as []int64.
func (a NDArray) Flat() (any, error) {
	n := a.Size()
	var out any
	switch a.DType {
	case "|b1":
		out = make([]bool, n)
	case "|i1":
		out = make([]int8, n)
	case "|u1":
		out = make([]uint8, n)
	case "<i2":
		out = make([]int16, n)
	case "<u2":
		out = make([]uint16, n)
	case "<i4":
		out = make([]int32, n)
	case "<u4":
		out = make([]uint32, n)
	case "<i8":
		out = make([]int64, n)
	case "<u8":
		out = make([]uint64, n)
	case "<f4":
		out = make([]float32, n)
	case "<f8":
		out = make([]float64, n)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", a.DType)
	}
	if err := binary.Read(bytes.NewReader(a.Data), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s data: %w", a.DType, err)
	}
	return out, nil
}

// Tensor converts the array into a gomlx tensor of the same shape.
func (a NDArray) Tensor() (*tensors.Tensor, error) {
	flat, err := a.Flat()
	if err != nil {
		return nil, err
	}
	switch v := flat.(type) {
	case []bool:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []int8:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []uint8:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []int16:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []uint16:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []int32:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []uint32:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []int64:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []uint64:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []float32:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	case []float64:
		return tensors.FromFlatDataAndDimensions(v, a.Shape...), nil
	default:
		return nil, fmt.Errorf("unexpected data type: %T", flat)
	}
}

// Value returns the array as nested Go slices, e.g. [][]int64 for a
// two-dimensional <i8 array, or a bare scalar for a 0-d array.
func (a NDArray) Value() (any, error) {
	t, err := a.Tensor()
	if err != nil {
		return nil, err
	}
	return t.Value(), nil
}

// String formats the nested value, falling back to a shape summary.
func (a NDArray) String() string {
	v, err := a.Value()
	if err != nil {
		return fmt.Sprintf("NDArray(%s, shape=%v)", a.DType, a.Shape)
	}
	return fmt.Sprint(v)
}
