package dbcollection

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/AvengerBruce000/dbcollection/loader"
)

// Key identifies an open DataLoader.
type Key struct {
	Name string
	Task string
}

// Registry hands out DataLoaders for catalog entries and keeps them open
// until closed. It is safe for concurrent use; the loaders it returns are
// not.
type Registry struct {
	catalog *Catalog
	opts    []loader.Option

	mu     sync.Mutex
	loaded map[Key]*loader.DataLoader
}

// NewRegistry returns a registry over catalog. opts are passed to every
// loader.New call.
func NewRegistry(catalog *Catalog, opts ...loader.Option) *Registry {
	return &Registry{
		catalog: catalog,
		opts:    opts,
		loaded:  map[Key]*loader.DataLoader{},
	}
}

// Open returns the DataLoader of a dataset task, opening it on first use.
func (r *Registry) Open(ctx context.Context, name, task string) (*loader.DataLoader, error) {
	loc, err := r.catalog.Lookup(name, task)
	if err != nil {
		return nil, err
	}
	key := Key{Name: loc.Name, Task: loc.Task}

	r.mu.Lock()
	defer r.mu.Unlock()
	if dl, ok := r.loaded[key]; ok {
		return dl, nil
	}
	dl, err := loader.New(ctx, loc.Name, loc.Task, loc.DataDir, loc.Path, r.opts...)
	if err != nil {
		return nil, err
	}
	r.loaded[key] = dl
	return dl, nil
}

// Loaded returns the keys of the open loaders, sorted.
func (r *Registry) Loaded() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.SortedFunc(maps.Keys(r.loaded), func(a, b Key) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Task, b.Task))
	})
}

// Close closes and forgets one loader. Closing a loader that is not open
// is a no-op.
func (r *Registry) Close(name, task string) error {
	key := Key{Name: name, Task: task}
	if loc, err := r.catalog.Lookup(name, task); err == nil {
		key = Key{Name: loc.Name, Task: loc.Task}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	dl, ok := r.loaded[key]
	if !ok {
		return nil
	}
	delete(r.loaded, key)
	return dl.Close()
}

// Clear closes every open loader.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, dl := range r.loaded {
		errs = append(errs, dl.Close())
		delete(r.loaded, key)
	}
	return errors.Join(errs...)
}
