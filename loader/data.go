// Package loader presents a dbcollection container as named splits of
// lazily read, randomly indexable columns.
//
// A DataLoader owns one SetLoader per split under default/, and every
// SetLoader owns one FieldLoader per column:
//
//	dl, err := loader.New(ctx, "mnist", "classification", dataDir, "/data/mnist/classification.zarr")
//	if err != nil {
//		return err
//	}
//	defer dl.Close()
//
//	rows, err := dl.Get(ctx, "train", "images", loader.Multi{8, 2, 5, 1}) // rows 1, 2, 5, 8
package loader

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/AvengerBruce000/dbcollection/zarr"
)

const defaultGroup = "default"

// DataLoader is the handle of one dataset and task.
type DataLoader struct {
	name    string
	task    string
	dataDir string
	path    string

	store  *zarr.Store
	sets   map[string]*SetLoader
	logger *Logger
	out    io.Writer
}

// New opens the container at path read-only and builds a SetLoader for
// every split below default/. path is a local directory or a bucket URL.
func New(ctx context.Context, name, task, dataDir, path string, opts ...Option) (*DataLoader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.WithDataset(name, task)
	o.logger = logger

	store, err := zarr.Open(ctx, path,
		zarr.WithReadConcurrency(o.readConcurrency),
		zarr.WithReadRateLimit(o.readRateLimit),
	)
	if err != nil {
		logger.LogOpen(ctx, path, 0, err)
		return nil, err
	}

	sets, err := loadSets(ctx, store, o)
	logger.LogOpen(ctx, path, len(sets), err)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &DataLoader{
		name:    name,
		task:    task,
		dataDir: dataDir,
		path:    path,
		store:   store,
		sets:    sets,
		logger:  logger,
		out:     o.out,
	}, nil
}

func loadSets(ctx context.Context, store *zarr.Store, o *options) (map[string]*SetLoader, error) {
	ok, err := store.IsGroup(ctx, defaultGroup)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: group %q", zarr.ErrNotFound, "/"+defaultGroup)
	}
	names, err := store.Children(ctx, defaultGroup)
	if err != nil {
		return nil, err
	}
	sets := make(map[string]*SetLoader, len(names))
	for _, name := range names {
		p := path.Join(defaultGroup, name)
		isGroup, err := store.IsGroup(ctx, p)
		if err != nil {
			return nil, err
		}
		if !isGroup {
			continue
		}
		s, err := newSetLoader(ctx, store, p, name, o)
		if err != nil {
			return nil, err
		}
		sets[name] = s
	}
	return sets, nil
}

func (d *DataLoader) Name() string    { return d.name }
func (d *DataLoader) Task() string    { return d.task }
func (d *DataLoader) DataDir() string { return d.dataDir }
func (d *DataLoader) Path() string    { return d.path }

// Len returns the number of splits.
func (d *DataLoader) Len() int {
	return len(d.sets)
}

// Sets returns the sorted split names.
func (d *DataLoader) Sets() []string {
	return slices.Sorted(maps.Keys(d.sets))
}

// Set returns the loader of a split.
func (d *DataLoader) Set(name string) (*SetLoader, error) {
	s, ok := d.sets[name]
	if !ok {
		return nil, &KeyError{Kind: "set", Key: name}
	}
	return s, nil
}

// Get reads rows of a field of a split.
func (d *DataLoader) Get(ctx context.Context, set, field string, idx Index) (zarr.NDArray, error) {
	s, err := d.Set(set)
	if err != nil {
		return zarr.NDArray{}, err
	}
	return s.Get(ctx, field, idx)
}

// GetStrings reads rows of a text field of a split and decodes them.
func (d *DataLoader) GetStrings(ctx context.Context, set, field string, idx Index) ([]string, error) {
	s, err := d.Set(set)
	if err != nil {
		return nil, err
	}
	return s.GetStrings(ctx, field, idx)
}

// Query names the arguments of a read.
type Query struct {
	Set   string
	Field string
	Index Index
	// AsText decodes the rows as text into Result.Strings.
	AsText bool
}

// Result holds the outcome of Fetch: Strings for text queries, Data
// otherwise.
type Result struct {
	Data    zarr.NDArray
	Strings []string
}

// Fetch runs a named query.
func (d *DataLoader) Fetch(ctx context.Context, q Query) (Result, error) {
	if q.AsText {
		strs, err := d.GetStrings(ctx, q.Set, q.Field, q.Index)
		return Result{Strings: strs}, err
	}
	data, err := d.Get(ctx, q.Set, q.Field, q.Index)
	return Result{Data: data}, err
}

// Size returns the shape of a field of a split, or of the split's
// object_ids when field is empty.
func (d *DataLoader) Size(set, field string) ([]int, error) {
	s, err := d.Set(set)
	if err != nil {
		return nil, err
	}
	return s.Size(field)
}

// Sizes returns Size(set, field) for every split.
func (d *DataLoader) Sizes(field string) (map[string][]int, error) {
	out := make(map[string][]int, len(d.sets))
	for name, s := range d.sets {
		size, err := s.Size(field)
		if err != nil {
			return nil, err
		}
		out[name] = size
	}
	return out, nil
}

// List returns the sorted field names of a split.
func (d *DataLoader) List(set string) ([]string, error) {
	s, err := d.Set(set)
	if err != nil {
		return nil, err
	}
	return s.List(), nil
}

// Lists returns List(set) for every split.
func (d *DataLoader) Lists() map[string][]string {
	out := make(map[string][]string, len(d.sets))
	for name, s := range d.sets {
		out[name] = s.List()
	}
	return out
}

// GetColumnID returns the position of field within the object_fields of
// a split.
func (d *DataLoader) GetColumnID(set, field string) (int, error) {
	s, err := d.Set(set)
	if err != nil {
		return 0, err
	}
	return s.GetColumnID(field)
}

// SetInMemory sets the cache flag of every field of every split.
func (d *DataLoader) SetInMemory(on bool) {
	for _, s := range d.sets {
		s.SetInMemory(on)
	}
}

// Info prints the field listing of a split, or of every split when set is
// empty, and returns it.
func (d *DataLoader) Info(set string) (string, error) {
	names := d.Sets()
	if set != "" {
		if _, err := d.Set(set); err != nil {
			return "", err
		}
		names = []string{set}
	}
	var b strings.Builder
	for _, name := range names {
		b.WriteString(d.sets[name].Info(false))
		b.WriteByte('\n')
	}
	out := b.String()
	fmt.Fprint(d.out, out)
	return out, nil
}

// Close releases the container.
func (d *DataLoader) Close() error {
	err := d.store.Close()
	d.logger.Debug("container closed", "path", d.path, "error", err)
	return err
}

func (d *DataLoader) String() string {
	return fmt.Sprintf("DataLoader: %s ('%s' task)", d.name, d.task)
}
