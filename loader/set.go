package loader

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/AvengerBruce000/dbcollection/zarr"
)

const (
	// ObjectIDs is the per-split table mapping objects to field rows.
	ObjectIDs = "object_ids"
	// ObjectFields names the field behind each object_ids column.
	ObjectFields = "object_fields"
)

// SetLoader resolves field names to FieldLoaders for one split.
type SetLoader struct {
	name      string
	fields    map[string]*FieldLoader
	columns   []string
	objectIDs *FieldLoader
	out       io.Writer
}

func newSetLoader(ctx context.Context, store *zarr.Store, groupPath, name string, o *options) (*SetLoader, error) {
	children, err := store.Children(ctx, groupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list set %q: %w", name, err)
	}

	logger := o.logger.WithSet(name)
	s := &SetLoader{
		name:   name,
		fields: make(map[string]*FieldLoader, len(children)),
		out:    o.out,
	}
	for _, child := range children {
		p := path.Join(groupPath, child)
		isArray, err := store.IsArray(ctx, p)
		if err != nil {
			return nil, err
		}
		if !isArray {
			continue
		}
		arr, err := store.OpenArray(ctx, p)
		if err != nil {
			return nil, err
		}
		if child == ObjectFields {
			if s.columns, err = readColumns(ctx, arr); err != nil {
				return nil, fmt.Errorf("set %q: %w", name, err)
			}
			continue
		}
		s.fields[child] = newFieldLoader(arr, logger, o)
	}

	if s.columns == nil {
		return nil, fmt.Errorf("set %q: %w", name, &KeyError{Kind: "field", Key: ObjectFields})
	}
	ids, ok := s.fields[ObjectIDs]
	if !ok {
		return nil, fmt.Errorf("set %q: %w", name, &KeyError{Kind: "field", Key: ObjectIDs})
	}
	if shape := ids.Size(); len(shape) != 2 || shape[1] != len(s.columns) {
		return nil, fmt.Errorf("set %q: object_ids shape %v does not match %d object fields", name, shape, len(s.columns))
	}
	s.objectIDs = ids
	return s, nil
}

func readColumns(ctx context.Context, arr *zarr.Array) ([]string, error) {
	data, err := arr.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read object fields: %w", err)
	}
	cols, err := data.DecodeStrings()
	if err != nil {
		return nil, fmt.Errorf("failed to decode object fields: %w", err)
	}
	return cols, nil
}

// Name returns the split name.
func (s *SetLoader) Name() string {
	return s.name
}

// Len returns the number of objects, i.e. the rows of object_ids.
func (s *SetLoader) Len() int {
	return s.objectIDs.Len()
}

// Columns returns the object_fields names in column order.
func (s *SetLoader) Columns() []string {
	return slices.Clone(s.columns)
}

// Field returns the loader of a field. object_ids is a field too.
func (s *SetLoader) Field(field string) (*FieldLoader, error) {
	if field == "" {
		return nil, ErrMissingField
	}
	f, ok := s.fields[field]
	if !ok {
		return nil, &KeyError{Kind: "field", Key: field}
	}
	return f, nil
}

// Fields returns the loaders of every listed field, keyed by name.
func (s *SetLoader) Fields() map[string]*FieldLoader {
	out := make(map[string]*FieldLoader, len(s.fields))
	for _, name := range s.List() {
		out[name] = s.fields[name]
	}
	return out
}

// Get reads rows of a field. Unlike FieldLoader.Get, an empty Multi reads
// the whole column.
func (s *SetLoader) Get(ctx context.Context, field string, idx Index) (zarr.NDArray, error) {
	f, err := s.Field(field)
	if err != nil {
		return zarr.NDArray{}, err
	}
	return f.Get(ctx, emptyAsAll(idx))
}

// GetStrings reads rows of a text field and decodes them.
func (s *SetLoader) GetStrings(ctx context.Context, field string, idx Index) ([]string, error) {
	f, err := s.Field(field)
	if err != nil {
		return nil, err
	}
	return f.GetStrings(ctx, emptyAsAll(idx))
}

func emptyAsAll(idx Index) Index {
	if m, ok := idx.(Multi); ok && len(m) == 0 {
		return nil
	}
	return idx
}

// Size returns the shape of a field, or of object_ids when field is empty.
func (s *SetLoader) Size(field string) ([]int, error) {
	if field == "" {
		return s.objectIDs.Size(), nil
	}
	f, err := s.Field(field)
	if err != nil {
		return nil, err
	}
	return f.Size(), nil
}

// List returns the sorted field names, leaving out object_ids and
// object_fields.
func (s *SetLoader) List() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		if name == ObjectIDs || name == ObjectFields {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetColumnID returns the position of field within object_fields.
func (s *SetLoader) GetColumnID(field string) (int, error) {
	if i := slices.Index(s.columns, field); i >= 0 {
		return i, nil
	}
	return 0, &KeyError{Kind: "column", Key: field}
}

// SetInMemory sets the cache flag of every field.
func (s *SetLoader) SetInMemory(on bool) {
	for _, f := range s.fields {
		f.SetInMemory(on)
	}
}

// Info lists the fields with their shapes and dtypes and prints the
// listing when verbose.
func (s *SetLoader) Info(verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "> Set: %s\n", s.name)
	names := s.List()
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	for _, name := range names {
		f := s.fields[name]
		fmt.Fprintf(&b, "   - %-*s  shape = %-14s dtype = %s", width, name, formatShape(f.Size()), f.DType())
		if i, err := s.GetColumnID(name); err == nil {
			fmt.Fprintf(&b, "  (in object_ids, position = %d)", i)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "   - %-*s  shape = %-14s dtype = %s\n", width, ObjectIDs, formatShape(s.objectIDs.Size()), s.objectIDs.DType())
	out := b.String()
	if verbose {
		fmt.Fprint(s.out, out)
	}
	return out
}

func (s *SetLoader) String() string {
	return fmt.Sprintf("SetLoader: set<%s>, len<%d>", s.name, s.Len())
}
