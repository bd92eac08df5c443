package loader_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvengerBruce000/dbcollection/loader"
	"github.com/AvengerBruce000/dbcollection/zarr"
)

func TestFieldLoader_Get(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	field := f.field(t, "train", "data")

	t.Run("all rows", func(t *testing.T) {
		got, err := field.Get(ctx, nil)
		require.NoError(t, err)
		assert.True(t, f.column(t, "train", "data").Equal(got))
	})

	t.Run("single row", func(t *testing.T) {
		got, err := field.Get(ctx, loader.Single(3))
		require.NoError(t, err)
		assert.Equal(t, []int{10}, got.Shape)
		assert.True(t, f.row(t, "train", "data", 3).Equal(got))
	})

	t.Run("rows come back sorted and unique", func(t *testing.T) {
		got, err := field.Get(ctx, loader.Multi{8, 2, 5, 1, 2, 8})
		require.NoError(t, err)
		assert.True(t, f.rows(t, "train", "data", 1, 2, 5, 8).Equal(got))
	})

	t.Run("single equals first of multi", func(t *testing.T) {
		for i := range field.Len() {
			single, err := field.Get(ctx, loader.Single(i))
			require.NoError(t, err)
			multi, err := field.Get(ctx, loader.Multi{i})
			require.NoError(t, err)
			first, err := multi.Row(0)
			require.NoError(t, err)
			assert.True(t, single.Equal(first), "row %d", i)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		for _, idx := range []loader.Index{loader.Single(-1), loader.Single(10), loader.Multi{0, 10}, loader.Multi{-1}} {
			_, err := field.Get(ctx, idx)
			assert.ErrorIs(t, err, loader.ErrIndexOutOfRange, "%v", idx)
			var ie *loader.IndexError
			assert.ErrorAs(t, err, &ie)
			assert.Equal(t, 10, ie.Len)
		}
	})

	// An empty selection is an error here but reads every row through
	// SetLoader and DataLoader. The asymmetry is kept on purpose and is
	// questionable; see TestDataLoader_Get_EmptyIndex.
	t.Run("empty index", func(t *testing.T) {
		_, err := field.Get(ctx, loader.Multi{})
		assert.ErrorIs(t, err, loader.ErrEmptyIndex)
	})
}

func TestFieldLoader_Identity(t *testing.T) {
	f := newFixture(t)
	field := f.field(t, "train", "data")

	assert.Equal(t, "data", field.Name())
	assert.Equal(t, "<i8", field.DType())
	assert.Equal(t, []int{10, 10}, field.Size())
	assert.Equal(t, field.Size()[0], field.Len())
	assert.Equal(t, `FieldLoader: <Zarr array "data": shape (10, 10), type "<i8">`, field.String())
}

func TestFieldLoader_Strings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	field := f.field(t, "train", "filenames")

	s, err := field.GetString(ctx, 0)
	require.NoError(t, err)
	assert.IsType(t, "", s)
	assert.Equal(t, f.strings["train"]["filenames"][0], s)

	all, err := field.GetStrings(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, f.strings["train"]["filenames"], all)

	some, err := field.GetStrings(ctx, loader.Multi{4, 0})
	require.NoError(t, err)
	want := f.strings["train"]["filenames"]
	assert.Equal(t, []string{want[0], want[4]}, some)

	one, err := field.GetStrings(ctx, loader.Single(2))
	require.NoError(t, err)
	assert.Equal(t, []string{want[2]}, one)

	_, err = f.field(t, "train", "data").GetString(ctx, 0)
	assert.Error(t, err)
}

func TestFieldLoader_InMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	metrics := &loader.BasicMetricsCollector{}
	field := f.field(t, "train", "data", loader.WithMetrics(metrics))

	indices := []loader.Index{nil, loader.Single(0), loader.Single(9), loader.Multi{7, 3, 3}, loader.Range(0, 10)}
	var fromStore []zarr.NDArray
	for _, idx := range indices {
		got, err := field.Get(ctx, idx)
		require.NoError(t, err)
		fromStore = append(fromStore, got)
	}

	field.SetInMemory(true)
	assert.True(t, field.InMemory())
	assert.False(t, field.Materialized(), "the copy is built on the next read")

	for i, idx := range indices {
		got, err := field.Get(ctx, idx)
		require.NoError(t, err)
		assert.True(t, fromStore[i].Equal(got), "%v", idx)
	}
	assert.True(t, field.Materialized())

	// Results do not alias the cache.
	got, err := field.Get(ctx, nil)
	require.NoError(t, err)
	got.Data[0] ^= 0xff
	again, err := field.Get(ctx, nil)
	require.NoError(t, err)
	assert.True(t, fromStore[0].Equal(again))

	field.SetInMemory(false)
	assert.False(t, field.Materialized())

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.Materializations)
	assert.Equal(t, int64(len(indices)+2), stats.CachedReads)
	assert.Equal(t, int64(len(indices)*2+2), stats.Reads)
}

func TestFieldLoader_HeadTail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	field := f.field(t, "train", "number")

	for _, n := range []int{1, 5, 10} {
		head, err := field.Head(ctx, n)
		require.NoError(t, err)
		want, err := field.Get(ctx, loader.Range(0, n))
		require.NoError(t, err)
		assert.True(t, want.Equal(head), "head %d", n)

		tail, err := field.Tail(ctx, n)
		require.NoError(t, err)
		want, err = field.Get(ctx, loader.Range(10-n, 10))
		require.NoError(t, err)
		assert.True(t, want.Equal(tail), "tail %d", n)
	}

	head, err := field.Head(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, head.Len())

	for _, n := range []int{0, -1} {
		_, err := field.Head(ctx, n)
		assert.ErrorIs(t, err, loader.ErrNonPositive)
		_, err = field.Tail(ctx, n)
		assert.ErrorIs(t, err, loader.ErrNonPositive)
	}
}

func TestFieldLoader_Sample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	field := f.field(t, "train", "number")

	t.Run("without replacement", func(t *testing.T) {
		got, err := field.Sample(ctx, 10)
		require.NoError(t, err)
		flat, err := got.Flat()
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, flat)
	})

	t.Run("seeded", func(t *testing.T) {
		a, err := field.Sample(ctx, 4, loader.WithRandomState(42))
		require.NoError(t, err)
		b, err := field.Sample(ctx, 4, loader.WithRandomState(42))
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
		assert.Equal(t, []int{4}, a.Shape)
	})

	t.Run("with replacement", func(t *testing.T) {
		got, err := field.Sample(ctx, 25, loader.WithReplacement(), loader.WithRandomState(1))
		require.NoError(t, err)
		assert.Equal(t, 25, got.Len())
		flat, err := got.Flat()
		require.NoError(t, err)
		for _, v := range flat.([]int64) {
			assert.True(t, v >= 0 && v < 10)
		}
	})

	t.Run("too many", func(t *testing.T) {
		_, err := field.Sample(ctx, 11)
		assert.Error(t, err)
	})

	t.Run("non positive", func(t *testing.T) {
		_, err := field.Sample(ctx, 0)
		assert.ErrorIs(t, err, loader.ErrNonPositive)
	})
}

func TestFieldLoader_At(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	field := f.field(t, "train", "data")

	got, err := field.At(ctx, 0, 0)
	require.NoError(t, err)
	want, err := f.column(t, "train", "data").At(0, 0)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
	assert.Empty(t, got.Shape)

	row, err := field.At(ctx, 4)
	require.NoError(t, err)
	assert.True(t, f.row(t, "train", "data", 4).Equal(row))

	_, err = field.At(ctx, 0, 10)
	assert.ErrorIs(t, err, loader.ErrIndexOutOfRange)
	_, err = field.At(ctx, 0, 0, 0)
	assert.ErrorIs(t, err, loader.ErrInvalidIndex)
}

func TestFieldLoader_ToSeries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	field := f.field(t, "train", "number")

	s, err := field.ToSeries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "number", s.Name)
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, loader.Range(0, 10), loader.Multi(s.Index()))

	values, err := s.Values()
	require.NoError(t, err)
	assert.Equal(t, int64(7), values[7])

	named, err := field.ToSeries(ctx, "ids")
	require.NoError(t, err)
	assert.Equal(t, "ids", named.Name)

	texts, err := f.field(t, "train", "strings_list").ToSeries(ctx, "")
	require.NoError(t, err)
	strs, err := texts.Strings()
	require.NoError(t, err)
	assert.Equal(t, f.strings["train"]["strings_list"], strs)
}

func TestFieldLoader_Tensor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	field := f.field(t, "train", "data")

	tensor, err := field.Tensor(ctx, loader.Multi{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 10}, tensor.Shape().Dimensions)

	want, err := f.rows(t, "train", "data", 1, 2).Value()
	require.NoError(t, err)
	assert.Equal(t, want, tensor.Value())
}

func TestFieldLoader_Info(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	field := f.field(t, "train", "data", loader.WithOutput(&out))

	s := field.Info(false)
	assert.Equal(t, "Field: data, shape = (10, 10), dtype = <i8", s)
	assert.Empty(t, out.String())

	field.Info(true)
	assert.Equal(t, s+"\n", out.String())
}
