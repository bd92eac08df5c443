package loader

import (
	"fmt"
	"reflect"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index selects rows of a field. It is either Single or Multi; a nil
// Index selects every row.
type Index interface {
	isIndex()
}

// Single selects one row and drops the leading dimension.
type Single int

// Multi selects several rows. Duplicates are collapsed and the rows come
// back in ascending order, not in the order given.
type Multi []int

func (Single) isIndex() {}
func (Multi) isIndex()  {}

// Range returns Multi{start, start+1, ..., end-1}.
func Range(start, end int) Multi {
	if end <= start {
		return Multi{}
	}
	m := make(Multi, end-start)
	for i := range m {
		m[i] = start + i
	}
	return m
}

// ParseIndex converts a dynamically typed value into an Index. It accepts
// nil, any integer, and slices or arrays of integers; anything else, such
// as a map used as a set, fails with ErrInvalidIndex.
func ParseIndex(v any) (Index, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Index:
		return x, nil
	case int:
		return Single(x), nil
	case []int:
		return Multi(x), nil
	}

	rv := reflect.ValueOf(v)
	if i, ok := intValue(rv); ok {
		return Single(i), nil
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		m := make(Multi, rv.Len())
		for k := range m {
			i, ok := intValue(rv.Index(k))
			if !ok {
				return nil, fmt.Errorf("%w: element %d of %T", ErrInvalidIndex, k, v)
			}
			m[k] = i
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidIndex, v)
}

func intValue(rv reflect.Value) (int, bool) {
	if rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}

// normalizeRows range-checks m against n and returns its sorted set of
// unique rows.
func normalizeRows(m Multi, n int) ([]int, error) {
	if len(m) == 0 {
		return nil, ErrEmptyIndex
	}
	bm := roaring.New()
	for _, i := range m {
		if i < 0 || i >= n {
			return nil, &IndexError{Index: i, Len: n}
		}
		bm.AddInt(i)
	}
	unique := bm.ToArray()
	rows := make([]int, len(unique))
	for k, u := range unique {
		rows[k] = int(u)
	}
	return rows, nil
}
