// Package convert writes dataset splits into a dbcollection container.
//
// A container holds two trees per split: source/<split>/... keeps the raw
// annotations under their original nested names, and default/<split>/...
// holds the flattened columns read by package loader together with the
// object_ids table and the object_fields names that index it.
package convert

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"slices"

	"github.com/AvengerBruce000/dbcollection/loader"
	"github.com/AvengerBruce000/dbcollection/zarr"
)

const (
	sourceGroup  = "source"
	defaultGroup = "default"
)

// ErrInvalidSplit is returned when split data breaks the container layout.
var ErrInvalidSplit = errors.New("invalid split")

// Policy selects what Write stores.
type Policy struct {
	// IncludeSourceGroup writes the source/ tree next to default/.
	IncludeSourceGroup bool
}

// DefaultPolicy writes both trees.
var DefaultPolicy = Policy{IncludeSourceGroup: true}

// Column is a named array. Source column names may be nested paths such
// as "annotations/boxes".
type Column struct {
	Name string
	Data zarr.NDArray
}

// SplitData is everything written for one split.
type SplitData struct {
	Source       []Column
	Columns      []Column
	ObjectFields []string
	// ObjectIDs holds one row per object with one entry per object field:
	// the row of that field the object refers to, or -1 when absent.
	ObjectIDs [][]int32
}

// Splits yields (split name, data) pairs. It is consumed once by Write.
type Splits = iter.Seq2[string, SplitData]

// SplitsOf returns Splits over a fixed list, in order.
func SplitsOf(names []string, data []SplitData) Splits {
	return func(yield func(string, SplitData) bool) {
		for i, name := range names {
			if !yield(name, data[i]) {
				return
			}
		}
	}
}

// Write stores every split of splits in store. opts apply to every array
// written, so chunk shapes set with zarr.WithChunks must fit all of them.
func Write(ctx context.Context, store *zarr.Store, splits Splits, policy Policy, opts ...zarr.ArrayOption) error {
	if err := store.CreateGroup(ctx, defaultGroup); err != nil {
		return fmt.Errorf("failed to create default group: %w", err)
	}
	if policy.IncludeSourceGroup {
		if err := store.CreateGroup(ctx, sourceGroup); err != nil {
			return fmt.Errorf("failed to create source group: %w", err)
		}
	}

	seen := map[string]bool{}
	for name, data := range splits {
		if err := ctx.Err(); err != nil {
			return err
		}
		if name == "" || seen[name] {
			return fmt.Errorf("%w: duplicate or empty split name %q", ErrInvalidSplit, name)
		}
		seen[name] = true

		if err := data.Validate(); err != nil {
			return fmt.Errorf("split %q: %w", name, err)
		}
		if policy.IncludeSourceGroup {
			if err := writeSource(ctx, store, name, data.Source, opts); err != nil {
				return err
			}
		}
		if err := writeDefault(ctx, store, name, data, opts); err != nil {
			return err
		}
	}
	return nil
}

// Create opens or creates the container at url and writes splits into it.
func Create(ctx context.Context, url string, splits Splits, policy Policy, opts ...zarr.ArrayOption) error {
	store, err := zarr.Open(ctx, url, zarr.WithCreate())
	if err != nil {
		return err
	}
	if err := Write(ctx, store, splits, policy, opts...); err != nil {
		store.Close()
		return err
	}
	return store.Close()
}

// Validate checks that the split can be read back by package loader.
func (d SplitData) Validate() error {
	rows := make(map[string]int, len(d.Columns))
	for _, c := range d.Columns {
		switch {
		case c.Name == "" || path.Base(c.Name) != c.Name:
			return fmt.Errorf("%w: bad column name %q", ErrInvalidSplit, c.Name)
		case c.Name == loader.ObjectIDs || c.Name == loader.ObjectFields:
			return fmt.Errorf("%w: column name %q is reserved", ErrInvalidSplit, c.Name)
		case len(c.Data.Shape) == 0:
			return fmt.Errorf("%w: column %q is a scalar", ErrInvalidSplit, c.Name)
		}
		if _, dup := rows[c.Name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSplit, c.Name)
		}
		rows[c.Name] = c.Data.Shape[0]
	}

	for i, f := range d.ObjectFields {
		if _, ok := rows[f]; !ok {
			return fmt.Errorf("%w: object field %q has no column", ErrInvalidSplit, f)
		}
		if slices.Index(d.ObjectFields, f) != i {
			return fmt.Errorf("%w: duplicate object field %q", ErrInvalidSplit, f)
		}
	}

	for i, ids := range d.ObjectIDs {
		if len(ids) != len(d.ObjectFields) {
			return fmt.Errorf("%w: object %d has %d ids for %d object fields", ErrInvalidSplit, i, len(ids), len(d.ObjectFields))
		}
		for k, id := range ids {
			if id < -1 || int(id) >= rows[d.ObjectFields[k]] {
				return fmt.Errorf("%w: object %d refers to row %d of %q", ErrInvalidSplit, i, id, d.ObjectFields[k])
			}
		}
	}
	return nil
}

func writeSource(ctx context.Context, store *zarr.Store, split string, cols []Column, opts []zarr.ArrayOption) error {
	root := path.Join(sourceGroup, split)
	if err := store.CreateGroup(ctx, root); err != nil {
		return err
	}
	for _, c := range cols {
		p := path.Join(root, c.Name)
		if _, err := store.CreateArray(ctx, p, c.Data, opts...); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}
	return nil
}

func writeDefault(ctx context.Context, store *zarr.Store, split string, d SplitData, opts []zarr.ArrayOption) error {
	root := path.Join(defaultGroup, split)
	if err := store.CreateGroup(ctx, root); err != nil {
		return err
	}
	for _, c := range d.Columns {
		p := path.Join(root, c.Name)
		if _, err := store.CreateArray(ctx, p, c.Data, opts...); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}

	fields, err := zarr.EncodeStrings(d.ObjectFields)
	if err != nil {
		return fmt.Errorf("failed to encode object fields: %w", err)
	}
	if _, err := store.CreateArray(ctx, path.Join(root, loader.ObjectFields), fields, opts...); err != nil {
		return fmt.Errorf("failed to write object fields of %s: %w", split, err)
	}

	flat := make([]int32, 0, len(d.ObjectIDs)*len(d.ObjectFields))
	for _, ids := range d.ObjectIDs {
		flat = append(flat, ids...)
	}
	ids, err := zarr.FromSlice(flat, len(d.ObjectIDs), len(d.ObjectFields))
	if err != nil {
		return err
	}
	if _, err := store.CreateArray(ctx, path.Join(root, loader.ObjectIDs), ids, opts...); err != nil {
		return fmt.Errorf("failed to write object ids of %s: %w", split, err)
	}
	return nil
}
