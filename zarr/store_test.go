package zarr_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/AvengerBruce000/dbcollection/zarr"
)

func TestStore_Hierarchy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	require.NoError(t, store.CreateGroup(ctx, "/source/train"))
	_, err := store.CreateArray(ctx, "/default/train/data", mustSlice(t, arange(6), 3, 2))
	require.NoError(t, err)
	_, err = store.CreateArray(ctx, "/default/test/data", mustSlice(t, arange(2), 1, 2))
	require.NoError(t, err)

	for _, g := range []string{"", "/", "source", "source/train", "default", "/default/train/"} {
		ok, err := store.IsGroup(ctx, g)
		require.NoError(t, err)
		assert.True(t, ok, "group %q", g)
	}

	ok, err := store.IsArray(ctx, "default/train/data")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.IsGroup(ctx, "default/train/data")
	require.NoError(t, err)
	assert.False(t, ok)

	root, err := store.Children(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "source"}, root)

	splits, err := store.Children(ctx, "/default")
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "train"}, splits)

	_, err = store.OpenArray(ctx, "default/val/data")
	require.ErrorIs(t, err, zarr.ErrNotFound)
}

func TestStore_Attrs(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	attrs, err := store.Attrs(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	require.NoError(t, store.SetAttrs(ctx, "default", map[string]any{"task": "classification"}))
	attrs, err = store.Attrs(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "classification", attrs["task"])
}

func TestStore_ReadOnly(t *testing.T) {
	ctx := context.Background()
	store := zarr.NewStore(memblob.OpenBucket(nil))
	defer store.Close()

	assert.False(t, store.Writable())
	require.ErrorIs(t, store.CreateGroup(ctx, "default"), zarr.ErrReadOnly)
	_, err := store.CreateArray(ctx, "x", mustSlice(t, []int32{1}))
	require.ErrorIs(t, err, zarr.ErrReadOnly)
	require.ErrorIs(t, store.SetAttrs(ctx, "", map[string]any{}), zarr.ErrReadOnly)
}

func TestStore_OpenLocalPath(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "container.zarr")

	w, err := zarr.Open(ctx, dir, zarr.WithCreate())
	require.NoError(t, err)
	_, err = w.CreateArray(ctx, "default/train/number", mustSlice(t, []int32{4, 5, 6}))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := zarr.Open(ctx, dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, dir, r.URL())

	arr, err := r.OpenArray(ctx, "default/train/number")
	require.NoError(t, err)
	got, err := arr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(mustSlice(t, []int32{4, 5, 6})))
}

func TestStore_ReadRateLimit(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	w := zarr.NewStore(bucket, zarr.WithCreate())
	_, err := w.CreateArray(ctx, "data", mustSlice(t, arange(64), 8, 8), zarr.WithChunks(2, 8))
	require.NoError(t, err)

	r := zarr.NewStore(bucket, zarr.WithReadRateLimit(1<<20))
	defer r.Close()
	arr, err := r.OpenArray(ctx, "data")
	require.NoError(t, err)
	got, err := arr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(mustSlice(t, arange(64), 8, 8)))

	// A single byte per second cannot serve four chunks before the deadline.
	slow := zarr.NewStore(bucket, zarr.WithReadRateLimit(1))
	arr, err = slow.OpenArray(ctx, "data")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = arr.Load(ctx)
	assert.Error(t, err)
}
