package loader_test

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AvengerBruce000/dbcollection/convert"
	"github.com/AvengerBruce000/dbcollection/loader"
	"github.com/AvengerBruce000/dbcollection/zarr"
)

// testSets is the row count of every split of the dummy container.
var testSets = map[string]int{
	"train": 10,
	"test":  5,
}

// objectFields are the per-object fields, sorted; list_* fields are
// shared tables that are not part of object_ids.
var objectFields = []string{"data", "field_with_a_long_name_for_printing", "filenames", "number", "strings_list"}

type fixture struct {
	path string
	// columns holds what was written, per split and field.
	columns map[string]map[string]zarr.NDArray
	strings map[string]map[string][]string
}

func (f *fixture) fields(set string) []string {
	return slices.Sorted(maps.Keys(f.columns[set]))
}

func (f *fixture) column(t *testing.T, set, field string) zarr.NDArray {
	t.Helper()
	c, ok := f.columns[set][field]
	require.True(t, ok, "no column %s/%s", set, field)
	return c
}

func (f *fixture) rows(t *testing.T, set, field string, rows ...int) zarr.NDArray {
	t.Helper()
	out, err := f.column(t, set, field).Take(rows)
	require.NoError(t, err)
	return out
}

func (f *fixture) row(t *testing.T, set, field string, i int) zarr.NDArray {
	t.Helper()
	out, err := f.column(t, set, field).Row(i)
	require.NoError(t, err)
	return out
}

func arange[T int64 | uint8](n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = T(i)
	}
	return out
}

func randomName(rng *rand.Rand) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	var b bytes.Buffer
	b.WriteString("fname_")
	for range 5 {
		b.WriteByte(alphabet[rng.IntN(len(alphabet))])
	}
	return b.String()
}

// newFixture writes the dummy container into a temp directory.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	f := &fixture{
		path:    filepath.Join(t.TempDir(), "dummy.zarr"),
		columns: map[string]map[string]zarr.NDArray{},
		strings: map[string]map[string][]string{},
	}

	var names []string
	var splits []convert.SplitData
	for _, set := range []string{"train", "test"} {
		n := testSets[set]

		filenames := make([]string, n)
		stringsList := make([]string, n)
		for i := range n {
			filenames[i] = randomName(rng)
			stringsList[i] = fmt.Sprintf("string_%d", i)
		}
		data := make([]int64, n*10)
		for i := range data {
			data[i] = rng.Int64N(10)
		}

		cols := map[string]zarr.NDArray{}
		var err error
		cols["data"], err = zarr.FromSlice(data, n, 10)
		require.NoError(t, err)
		cols["number"], err = zarr.FromSlice(arange[int64](n))
		require.NoError(t, err)
		cols["field_with_a_long_name_for_printing"], err = zarr.FromSlice(arange[int64](n))
		require.NoError(t, err)
		cols["filenames"], err = zarr.EncodeStrings(filenames)
		require.NoError(t, err)
		cols["strings_list"], err = zarr.EncodeStrings(stringsList)
		require.NoError(t, err)
		cols["list_dummy_data"], err = zarr.FromSlice(arange[int64](10))
		require.NoError(t, err)
		cols["list_dummy_number"], err = zarr.FromSlice(arange[uint8](10))
		require.NoError(t, err)

		ids := make([][]int32, n)
		for i := range ids {
			ids[i] = make([]int32, len(objectFields))
			for k := range ids[i] {
				ids[i][k] = int32(i)
			}
		}

		split := convert.SplitData{ObjectFields: objectFields, ObjectIDs: ids}
		for _, name := range slices.Sorted(maps.Keys(cols)) {
			split.Columns = append(split.Columns, convert.Column{Name: name, Data: cols[name]})
		}

		f.columns[set] = cols
		f.strings[set] = map[string][]string{"filenames": filenames, "strings_list": stringsList}
		names = append(names, set)
		splits = append(splits, split)
	}

	err := convert.Create(context.Background(), f.path, convert.SplitsOf(names, splits), convert.Policy{},
		zarr.WithCompressor(&zarr.CompressorConfig{ID: zarr.CompressorZlib}))
	require.NoError(t, err)
	return f
}

// open opens the fixture with Info output discarded.
func (f *fixture) open(t *testing.T, opts ...loader.Option) *loader.DataLoader {
	t.Helper()
	opts = append([]loader.Option{loader.WithReadConcurrency(4), loader.WithOutput(&bytes.Buffer{})}, opts...)
	dl, err := loader.New(context.Background(), "dummy", "classification", filepath.Dir(f.path), f.path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { dl.Close() })
	return dl
}

func (f *fixture) field(t *testing.T, set, field string, opts ...loader.Option) *loader.FieldLoader {
	t.Helper()
	s, err := f.open(t, opts...).Set(set)
	require.NoError(t, err)
	fl, err := s.Field(field)
	require.NoError(t, err)
	return fl
}
