package zarr

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"sync"

	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"
)

// Array is a read handle on one Zarr array inside a Store.
type Array struct {
	store    *Store
	path     string
	meta     *Metadata
	itemSize int
}

func newArray(s *Store, p string, meta *Metadata) (*Array, error) {
	size, err := itemSize(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("invalid dtype: %w", err)
	}
	return &Array{store: s, path: p, meta: meta, itemSize: size}, nil
}

// Name is the last element of the array path.
func (a *Array) Name() string {
	return path.Base("/" + a.path)
}

// Path is the absolute path of the array inside its store.
func (a *Array) Path() string {
	return "/" + a.path
}

func (a *Array) Metadata() *Metadata {
	return a.meta
}

// Shape returns a copy of the array shape.
func (a *Array) Shape() []int {
	return append([]int(nil), a.meta.Shape...)
}

func (a *Array) DType() string {
	return a.meta.DType
}

// Len is the size of the first dimension.
func (a *Array) Len() int {
	if len(a.meta.Shape) == 0 {
		return 0
	}
	return a.meta.Shape[0]
}

// String returns e.g. <Zarr array "data": shape (10, 10), type "<i8">.
func (a *Array) String() string {
	dims := make([]string, len(a.meta.Shape))
	for i, d := range a.meta.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := "(" + strings.Join(dims, ", ")
	if len(dims) == 1 {
		shape += ","
	}
	shape += ")"
	return fmt.Sprintf("<Zarr array %q: shape %s, type %q>", a.Name(), shape, a.meta.DType)
}

func (a *Array) chunkBytes() int {
	return product(a.meta.Chunks) * a.itemSize
}

// fillChunk builds a chunk made of the fill value.
func (a *Array) fillChunk() []byte {
	buf := make([]byte, a.chunkBytes())
	item := a.fillItem()
	if item == nil {
		return buf
	}
	for off := 0; off < len(buf); off += a.itemSize {
		copy(buf[off:], item)
	}
	return buf
}

// fillItem encodes a numeric fill value; nil means zero.
func (a *Array) fillItem() []byte {
	v, ok := a.meta.FillValue.(float64)
	if !ok || v == 0 {
		return nil
	}
	item := make([]byte, a.itemSize)
	switch a.meta.DType[1] {
	case 'f':
		if a.itemSize == 4 {
			binary.LittleEndian.PutUint32(item, math.Float32bits(float32(v)))
		} else {
			binary.LittleEndian.PutUint64(item, math.Float64bits(v))
		}
	case 'i', 'u', 'b':
		u := uint64(int64(v))
		for i := range item {
			item[i] = byte(u >> (8 * i))
		}
	default:
		return nil
	}
	return item
}

// ReadChunk reads a single chunk from the array given its coordinates.
// Missing chunks are returned filled with the fill value.
func (a *Array) ReadChunk(ctx context.Context, coords []int) ([]byte, error) {
	key := joinKey(a.path, ChunkKey(coords, a.meta.separator()))

	chunkData, err := a.store.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return a.fillChunk(), nil
		}
		return nil, fmt.Errorf("failed to read chunk %s: %w", key, err)
	}
	if err := a.store.acquireIO(ctx, len(chunkData)); err != nil {
		return nil, err
	}

	chunkData, err = decodeChunk(a.meta.Compressor, chunkData)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk %s: %w", key, err)
	}
	if len(chunkData) < a.chunkBytes() {
		return nil, fmt.Errorf("chunk %s holds %d bytes, expected %d", key, len(chunkData), a.chunkBytes())
	}
	return chunkData, nil
}

// ReadFull reads the entire array into a flat byte slice.
func (a *Array) ReadFull(ctx context.Context) ([]byte, error) {
	if len(a.meta.Shape) == 0 {
		chunk, err := a.ReadChunk(ctx, []int{})
		if err != nil {
			return nil, err
		}
		return chunk[:a.itemSize], nil
	}
	if product(a.meta.Shape) == 0 {
		return []byte{}, nil
	}
	return a.ReadRegion(ctx, make([]int, len(a.meta.Shape)), a.meta.Shape)
}

// ReadRegion reads an N-dimensional region of the array.
func (a *Array) ReadRegion(ctx context.Context, start, shape []int) ([]byte, error) {
	if len(start) != len(a.meta.Shape) || len(shape) != len(a.meta.Shape) {
		return nil, fmt.Errorf("start and shape must match array dimensionality")
	}

	for i := range a.meta.Shape {
		if start[i] < 0 || shape[i] <= 0 || start[i]+shape[i] > a.meta.Shape[i] {
			return nil, fmt.Errorf("%w: region at dimension %d", ErrOutOfBounds, i)
		}
	}

	out := make([]byte, product(shape)*a.itemSize)

	if len(a.meta.Shape) == 0 {
		return a.ReadFull(ctx)
	}

	minChunk := make([]int, len(start))
	maxChunk := make([]int, len(start))
	for i := range start {
		minChunk[i] = start[i] / a.meta.Chunks[i]
		maxChunk[i] = (start[i]+shape[i]-1)/a.meta.Chunks[i] + 1
	}

	dstStrides := strides(shape)
	chunkStrides := strides(a.meta.Chunks)

	// Chunks cover disjoint parts of out, so they can be copied concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.store.concurrency)
	err := iterateSubGrid(minChunk, maxChunk, func(coords []int) error {
		g.Go(func() error {
			chunkData, err := a.ReadChunk(gctx, coords)
			if err != nil {
				return err
			}

			copyShape := make([]int, len(a.meta.Shape))
			srcOffset := make([]int, len(a.meta.Shape))
			dstOffset := make([]int, len(a.meta.Shape))

			for i := range a.meta.Shape {
				chunkStartGlobal := coords[i] * a.meta.Chunks[i]
				chunkEndGlobal := min(chunkStartGlobal+a.meta.Chunks[i], a.meta.Shape[i])

				intersectStart := max(chunkStartGlobal, start[i])
				intersectEnd := min(chunkEndGlobal, start[i]+shape[i])
				if intersectStart >= intersectEnd {
					return nil
				}

				copyShape[i] = intersectEnd - intersectStart
				srcOffset[i] = intersectStart - chunkStartGlobal
				dstOffset[i] = intersectStart - start[i]
			}

			copyND(out, dstStrides, dstOffset, chunkData, chunkStrides, srcOffset, copyShape, a.itemSize)
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadRows gathers whole rows (first-dimension slices) in the order given.
// Repeated rows are repeated in the output. Each row-chunk band is read once.
func (a *Array) ReadRows(ctx context.Context, rows []int) ([]byte, error) {
	if len(a.meta.Shape) == 0 {
		return nil, fmt.Errorf("cannot read rows of a scalar array")
	}
	n := a.meta.Shape[0]
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, fmt.Errorf("%w: row %d, length %d", ErrOutOfBounds, r, n)
		}
	}

	rowBytes := product(a.meta.Shape[1:]) * a.itemSize
	out := make([]byte, len(rows)*rowBytes)
	if rowBytes == 0 {
		return out, nil
	}

	bandRows := a.meta.Chunks[0]
	var (
		mu    sync.Mutex
		bands = map[int][]byte{}
	)
	needed := map[int]struct{}{}
	for _, r := range rows {
		needed[r/bandRows] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.store.concurrency)
	for band := range needed {
		g.Go(func() error {
			first := band * bandRows
			count := min(bandRows, n-first)
			shape := append([]int{count}, a.meta.Shape[1:]...)
			start := make([]int, len(shape))
			start[0] = first
			data, err := a.ReadRegion(gctx, start, shape)
			if err != nil {
				return err
			}
			mu.Lock()
			bands[band] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range rows {
		band := bands[r/bandRows]
		off := (r % bandRows) * rowBytes
		copy(out[i*rowBytes:(i+1)*rowBytes], band[off:off+rowBytes])
	}
	return out, nil
}

// Load reads the whole array as an NDArray.
func (a *Array) Load(ctx context.Context) (NDArray, error) {
	data, err := a.ReadFull(ctx)
	if err != nil {
		return NDArray{}, err
	}
	return NDArray{DType: a.meta.DType, Shape: a.Shape(), Data: data}, nil
}

// Rows reads the given rows as an NDArray whose first dimension is len(rows).
func (a *Array) Rows(ctx context.Context, rows []int) (NDArray, error) {
	data, err := a.ReadRows(ctx, rows)
	if err != nil {
		return NDArray{}, err
	}
	shape := append([]int{len(rows)}, a.meta.Shape[1:]...)
	return NDArray{DType: a.meta.DType, Shape: shape, Data: data}, nil
}
