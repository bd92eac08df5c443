package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Batcher reads a field front to back in consecutive row batches.
type Batcher struct {
	field        *FieldLoader
	CurrentIndex int
}

// NewBatcher returns a Batcher positioned at row 0.
func (f *FieldLoader) NewBatcher() *Batcher {
	return &Batcher{field: f}
}

// NextBatch reads the next batch of up to batchSize rows as a tensor whose
// first dimension is the number of rows read. The last batch may be short.
// Returns io.EOF if there is no more data.
func (b *Batcher) NextBatch(ctx context.Context, batchSize int) (*tensors.Tensor, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch of %d rows", ErrNonPositive, batchSize)
	}
	n := b.field.Len()
	if b.CurrentIndex >= n {
		return nil, io.EOF
	}

	start := b.CurrentIndex
	end := min(start+batchSize, n)
	t, err := b.field.Tensor(ctx, Range(start, end))
	if err != nil {
		return nil, err
	}
	b.CurrentIndex = end
	return t, nil
}

// Reset rewinds to row 0.
func (b *Batcher) Reset() {
	b.CurrentIndex = 0
}
