package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvengerBruce000/dbcollection"
	"github.com/AvengerBruce000/dbcollection/convert"
	"github.com/AvengerBruce000/dbcollection/loader"
	"github.com/AvengerBruce000/dbcollection/zarr"
)

func writeContainer(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toy.zarr")
	number, err := zarr.FromSlice([]int64{10, 11, 12, 13})
	require.NoError(t, err)
	names, err := zarr.EncodeStrings([]string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"})
	require.NoError(t, err)
	split := convert.SplitData{
		Columns: []convert.Column{
			{Name: "filenames", Data: names},
			{Name: "number", Data: number},
		},
		ObjectFields: []string{"filenames", "number"},
		ObjectIDs:    [][]int32{{0, 0}, {1, 1}, {2, 2}, {3, 3}},
	}
	splits := convert.SplitsOf([]string{"train"}, []convert.SplitData{split})
	require.NoError(t, convert.Create(context.Background(), path, splits, convert.DefaultPolicy))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestRun(t *testing.T) {
	path := writeContainer(t)

	out, err := runCmd(t, "-path", path, "list")
	require.NoError(t, err)
	assert.Equal(t, "train: filenames, number\n", out)

	out, err = runCmd(t, "-path", path, "size", "train")
	require.NoError(t, err)
	assert.Equal(t, "train: [4 2]\n", out)

	out, err = runCmd(t, "-path", path, "size", "train", "number")
	require.NoError(t, err)
	assert.Equal(t, "train: [4]\n", out)

	out, err = runCmd(t, "-path", path, "-str", "get", "train", "filenames", "3", "1")
	require.NoError(t, err)
	assert.Equal(t, "b.jpg\nd.jpg\n", out)

	out, err = runCmd(t, "-path", path, "get", "train", "number", "2")
	require.NoError(t, err)
	assert.Equal(t, "12\n", out)

	out, err = runCmd(t, "-path", path, "-seed", "3", "sample", "train", "number", "4")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = runCmd(t, "-path", path, "info", "train")
	require.NoError(t, err)
	assert.Contains(t, out, "> Set: train")
}

func TestRun_Catalog(t *testing.T) {
	path := writeContainer(t)
	catalog := filepath.Join(t.TempDir(), "catalog.json")
	c := dbcollection.NewCatalog()
	require.NoError(t, c.Add("toy", "classification", filepath.Dir(path), path))
	require.NoError(t, c.Save(catalog))

	out, err := runCmd(t, "-catalog", catalog, "-name", "toy", "list", "train")
	require.NoError(t, err)
	assert.Equal(t, "train: filenames, number\n", out)
}

func TestRun_Errors(t *testing.T) {
	path := writeContainer(t)

	_, err := runCmd(t, "-path", path)
	assert.Error(t, err)

	_, err = runCmd(t, "-path", path, "size", "val")
	assert.ErrorIs(t, err, loader.ErrKeyNotFound)

	_, err = runCmd(t, "-path", path, "get", "train", "number", "x")
	assert.ErrorIs(t, err, loader.ErrInvalidIndex)

	_, err = runCmd(t, "-path", path, "frobnicate")
	assert.Error(t, err)

	_, err = runCmd(t, "list")
	assert.Error(t, err)
}
