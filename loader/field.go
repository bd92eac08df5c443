package loader

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/AvengerBruce000/dbcollection/zarr"
)

// FieldLoader reads one column of a split, either straight from the store
// or from an in-memory copy built on first use once SetInMemory(true) is set.
type FieldLoader struct {
	array    *zarr.Array
	inMemory bool
	cache    *zarr.NDArray

	logger  *Logger
	metrics MetricsCollector
	out     io.Writer
}

func newFieldLoader(arr *zarr.Array, logger *Logger, o *options) *FieldLoader {
	return &FieldLoader{
		array:    arr,
		inMemory: o.inMemory,
		logger:   logger,
		metrics:  o.metrics,
		out:      o.out,
	}
}

func (f *FieldLoader) Name() string {
	return f.array.Name()
}

// Array returns the backing store handle.
func (f *FieldLoader) Array() *zarr.Array {
	return f.array
}

func (f *FieldLoader) DType() string {
	return f.array.DType()
}

// Size returns the column shape.
func (f *FieldLoader) Size() []int {
	return f.array.Shape()
}

// Len returns the number of rows.
func (f *FieldLoader) Len() int {
	return f.array.Len()
}

// InMemory reports the cache flag.
func (f *FieldLoader) InMemory() bool {
	return f.inMemory
}

// SetInMemory sets the cache flag. The column is not read until the next
// Get; clearing the flag drops the in-memory copy.
func (f *FieldLoader) SetInMemory(on bool) {
	f.inMemory = on
	if !on {
		f.cache = nil
	}
}

// Materialized reports whether the in-memory copy has been built.
func (f *FieldLoader) Materialized() bool {
	return f.cache != nil
}

func (f *FieldLoader) materialize(ctx context.Context) (zarr.NDArray, error) {
	if f.cache != nil {
		return *f.cache, nil
	}
	start := time.Now()
	data, err := f.array.Load(ctx)
	f.metrics.RecordMaterialize(f.Name(), len(data.Data), time.Since(start), err)
	f.logger.LogMaterialize(ctx, f.Name(), len(data.Data), err)
	if err != nil {
		return zarr.NDArray{}, fmt.Errorf("failed to load field %q: %w", f.Name(), err)
	}
	f.cache = &data
	return data, nil
}

// Get reads rows of the column. A nil idx reads the whole column, Single(i)
// reads row i, and Multi reads the sorted set of unique rows it names.
func (f *FieldLoader) Get(ctx context.Context, idx Index) (zarr.NDArray, error) {
	start := time.Now()
	out, err := f.get(ctx, idx)
	rows := out.Len()
	if _, ok := idx.(Single); ok {
		rows = 1
	}
	f.metrics.RecordRead(f.Name(), rows, f.inMemory, time.Since(start), err)
	f.logger.LogRead(ctx, f.Name(), rows, f.inMemory, err)
	return out, err
}

func (f *FieldLoader) get(ctx context.Context, idx Index) (zarr.NDArray, error) {
	n := f.Len()
	switch x := idx.(type) {
	case nil:
		if f.inMemory {
			data, err := f.materialize(ctx)
			return data.Clone(), err
		}
		return f.array.Load(ctx)
	case Single:
		i := int(x)
		if i < 0 || i >= n {
			return zarr.NDArray{}, &IndexError{Index: i, Len: n}
		}
		rows, err := f.take(ctx, []int{i})
		if err != nil {
			return zarr.NDArray{}, err
		}
		return rows.Row(0)
	case Multi:
		rows, err := normalizeRows(x, n)
		if err != nil {
			return zarr.NDArray{}, err
		}
		return f.take(ctx, rows)
	default:
		return zarr.NDArray{}, fmt.Errorf("%w: %T", ErrInvalidIndex, idx)
	}
}

// take gathers rows in the given order, from memory when the flag is set.
func (f *FieldLoader) take(ctx context.Context, rows []int) (zarr.NDArray, error) {
	if f.inMemory {
		data, err := f.materialize(ctx)
		if err != nil {
			return zarr.NDArray{}, err
		}
		return data.Take(rows)
	}
	return f.array.Rows(ctx, rows)
}

// GetString reads row i and decodes it as text.
func (f *FieldLoader) GetString(ctx context.Context, i int) (string, error) {
	row, err := f.Get(ctx, Single(i))
	if err != nil {
		return "", err
	}
	return row.DecodeString()
}

// GetStrings reads rows and decodes each one as text.
func (f *FieldLoader) GetStrings(ctx context.Context, idx Index) ([]string, error) {
	if i, ok := idx.(Single); ok {
		s, err := f.GetString(ctx, int(i))
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	data, err := f.Get(ctx, idx)
	if err != nil {
		return nil, err
	}
	return data.DecodeStrings()
}

// At indexes into sub-dimensions: At(ctx, 0, 0) is element 0 of row 0.
// Without indices it reads the whole column.
func (f *FieldLoader) At(ctx context.Context, idx ...int) (zarr.NDArray, error) {
	if len(idx) == 0 {
		return f.Get(ctx, nil)
	}
	shape := f.Size()
	if len(idx) > len(shape) {
		return zarr.NDArray{}, fmt.Errorf("%w: %d indices for a rank %d field", ErrInvalidIndex, len(idx), len(shape))
	}
	for k, i := range idx {
		if i < 0 || i >= shape[k] {
			return zarr.NDArray{}, &IndexError{Index: i, Len: shape[k]}
		}
	}
	row, err := f.Get(ctx, Single(idx[0]))
	if err != nil {
		return zarr.NDArray{}, err
	}
	return row.At(idx[1:]...)
}

// Tensor reads rows and converts them into a gomlx tensor.
func (f *FieldLoader) Tensor(ctx context.Context, idx Index) (*tensors.Tensor, error) {
	data, err := f.Get(ctx, idx)
	if err != nil {
		return nil, err
	}
	return data.Tensor()
}

type sampleOptions struct {
	replace bool
	seed    *uint64
}

// SampleOption configures Sample.
type SampleOption func(*sampleOptions)

// WithReplacement lets Sample draw the same row more than once.
func WithReplacement() SampleOption {
	return func(o *sampleOptions) {
		o.replace = true
	}
}

// WithRandomState seeds the draw so that it is reproducible.
func WithRandomState(seed uint64) SampleOption {
	return func(o *sampleOptions) {
		o.seed = &seed
	}
}

// Sample draws n rows uniformly at random. Rows come back in draw order
// and, with replacement, may repeat.
func (f *FieldLoader) Sample(ctx context.Context, n int, opts ...SampleOption) (zarr.NDArray, error) {
	if n <= 0 {
		return zarr.NDArray{}, fmt.Errorf("%w: sample of %d rows", ErrNonPositive, n)
	}
	o := &sampleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	total := f.Len()
	if total == 0 || (!o.replace && n > total) {
		return zarr.NDArray{}, fmt.Errorf("cannot sample %d rows without replacement from %d", n, total)
	}

	var rng *rand.Rand
	if o.seed != nil {
		rng = rand.New(rand.NewPCG(*o.seed, *o.seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	rows := make([]int, n)
	if o.replace {
		for i := range rows {
			rows[i] = rng.IntN(total)
		}
	} else {
		copy(rows, rng.Perm(total)[:n])
	}

	start := time.Now()
	out, err := f.take(ctx, rows)
	f.metrics.RecordRead(f.Name(), n, f.inMemory, time.Since(start), err)
	f.logger.LogRead(ctx, f.Name(), n, f.inMemory, err)
	return out, err
}

// Head returns the first n rows, or all rows when the field is shorter.
func (f *FieldLoader) Head(ctx context.Context, n int) (zarr.NDArray, error) {
	if n <= 0 {
		return zarr.NDArray{}, fmt.Errorf("%w: head of %d rows", ErrNonPositive, n)
	}
	return f.Get(ctx, Range(0, min(n, f.Len())))
}

// Tail returns the last n rows, or all rows when the field is shorter.
func (f *FieldLoader) Tail(ctx context.Context, n int) (zarr.NDArray, error) {
	if n <= 0 {
		return zarr.NDArray{}, fmt.Errorf("%w: tail of %d rows", ErrNonPositive, n)
	}
	total := f.Len()
	return f.Get(ctx, Range(max(total-n, 0), total))
}

// ToSeries returns the loaded column as a labelled sequence of rows.
// An empty name labels the series with the field name.
func (f *FieldLoader) ToSeries(ctx context.Context, name string) (*Series, error) {
	data, err := f.Get(ctx, nil)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = f.Name()
	}
	return newSeries(name, data)
}

// Info describes the field and prints the description when verbose.
func (f *FieldLoader) Info(verbose bool) string {
	s := fmt.Sprintf("Field: %s, shape = %s, dtype = %s", f.Name(), formatShape(f.Size()), f.DType())
	if verbose {
		fmt.Fprintln(f.out, s)
	}
	return s
}

func (f *FieldLoader) String() string {
	return "FieldLoader: " + f.array.String()
}

func formatShape(shape []int) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	s := "(" + strings.Join(dims, ", ")
	if len(dims) == 1 {
		s += ","
	}
	return s + ")"
}
