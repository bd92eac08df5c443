package loader

import (
	"fmt"
	"strings"

	"github.com/AvengerBruce000/dbcollection/zarr"
)

// Series is a one-dimensional labelled view over a loaded column: one
// entry per row, positionally indexed from 0.
type Series struct {
	Name string
	data zarr.NDArray
}

func newSeries(name string, data zarr.NDArray) (*Series, error) {
	if len(data.Shape) == 0 {
		return nil, fmt.Errorf("cannot build a series from a scalar")
	}
	return &Series{Name: name, data: data}, nil
}

// Len returns the number of entries.
func (s *Series) Len() int {
	return s.data.Len()
}

// Index returns the positional labels 0..Len()-1.
func (s *Series) Index() []int {
	return Range(0, s.Len())
}

// At returns entry i, which is a scalar for a one-dimensional column and a
// row otherwise.
func (s *Series) At(i int) (zarr.NDArray, error) {
	if i < 0 || i >= s.Len() {
		return zarr.NDArray{}, &IndexError{Index: i, Len: s.Len()}
	}
	return s.data.Row(i)
}

// Values returns every entry as a Go value, e.g. int64 or []int64.
func (s *Series) Values() ([]any, error) {
	out := make([]any, s.Len())
	for i := range out {
		row, err := s.data.Row(i)
		if err != nil {
			return nil, err
		}
		if out[i], err = row.Value(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Strings decodes every entry as text.
func (s *Series) Strings() ([]string, error) {
	return s.data.DecodeStrings()
}

// Data returns the underlying array.
func (s *Series) Data() zarr.NDArray {
	return s.data
}

// Equal reports whether both series carry the same name and entries.
func (s *Series) Equal(o *Series) bool {
	return s.Name == o.Name && s.data.Equal(o.data)
}

func (s *Series) String() string {
	var b strings.Builder
	for i := range s.Len() {
		row, _ := s.data.Row(i)
		fmt.Fprintf(&b, "%d    %s\n", i, row)
	}
	fmt.Fprintf(&b, "Name: %s, Length: %d, dtype: %s", s.Name, s.Len(), s.data.DType)
	return b.String()
}
