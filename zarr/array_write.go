package zarr

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
)

// defaultChunkBytes caps the size of a default chunk along the first axis.
const defaultChunkBytes = 1 << 20

type arrayOptions struct {
	chunks     []int
	compressor *CompressorConfig
	attrs      map[string]any
}

// ArrayOption configures CreateArray.
type ArrayOption func(*arrayOptions)

// WithChunks sets the chunk shape. It must have the rank of the array.
func WithChunks(chunks ...int) ArrayOption {
	return func(o *arrayOptions) {
		o.chunks = chunks
	}
}

// WithCompressor sets the chunk compressor; nil stores raw chunks.
func WithCompressor(c *CompressorConfig) ArrayOption {
	return func(o *arrayOptions) {
		o.compressor = c
	}
}

// WithAttrs stores a .zattrs document next to the array.
func WithAttrs(attrs map[string]any) ArrayOption {
	return func(o *arrayOptions) {
		o.attrs = attrs
	}
}

// defaultChunks keeps every trailing dimension whole and bands the first
// axis so that one chunk stays around defaultChunkBytes.
func defaultChunks(shape []int, itemSize int) []int {
	chunks := make([]int, len(shape))
	if len(shape) == 0 {
		return chunks
	}
	for i := 1; i < len(shape); i++ {
		chunks[i] = max(shape[i], 1)
	}
	rowBytes := product(chunks[1:]) * itemSize
	rows := max(defaultChunkBytes/max(rowBytes, 1), 1)
	chunks[0] = max(min(rows, shape[0]), 1)
	return chunks
}

// CreateArray writes data as a new array at p, creating parent groups.
func (s *Store) CreateArray(ctx context.Context, p string, data NDArray, opts ...ArrayOption) (*Array, error) {
	if !s.writable {
		return nil, ErrReadOnly
	}
	o := &arrayOptions{}
	for _, opt := range opts {
		opt(o)
	}

	size, err := itemSize(data.DType)
	if err != nil {
		return nil, fmt.Errorf("invalid dtype: %w", err)
	}
	if len(data.Data) != product(data.Shape)*size {
		return nil, fmt.Errorf("data length %d does not match shape %v of %s", len(data.Data), data.Shape, data.DType)
	}

	chunks := o.chunks
	if chunks == nil {
		chunks = defaultChunks(data.Shape, size)
	}
	meta := &Metadata{
		ZarrFormat: 2,
		Shape:      append([]int(nil), data.Shape...),
		Chunks:     append([]int(nil), chunks...),
		DType:      data.DType,
		Compressor: o.compressor,
		FillValue:  0,
		Order:      "C",
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	p = cleanPath(p)
	if err := s.CreateGroup(ctx, path.Dir("/"+p)); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, joinKey(p, arrayKey), doc, nil); err != nil {
		return nil, fmt.Errorf("failed to write metadata for %s: %w", p, err)
	}
	if o.attrs != nil {
		if err := s.SetAttrs(ctx, p, o.attrs); err != nil {
			return nil, err
		}
	}

	arr, err := newArray(s, p, meta)
	if err != nil {
		return nil, err
	}
	if err := arr.writeChunks(ctx, data.Data); err != nil {
		return nil, err
	}
	return arr, nil
}

// writeChunks splits the flat data into full-size chunks; edge chunks are
// zero padded as Zarr V2 expects.
func (a *Array) writeChunks(ctx context.Context, data []byte) error {
	if len(a.meta.Shape) == 0 {
		return a.writeChunk(ctx, []int{}, data[:a.itemSize])
	}

	grid := GridShape(a.meta.Shape, a.meta.Chunks)
	globalStrides := strides(a.meta.Shape)
	chunkStrides := strides(a.meta.Chunks)

	return iterateSubGrid(make([]int, len(grid)), grid, func(coords []int) error {
		buf := make([]byte, a.chunkBytes())
		copyShape := make([]int, len(coords))
		srcOffset := make([]int, len(coords))
		for i, c := range coords {
			srcOffset[i] = c * a.meta.Chunks[i]
			copyShape[i] = min(a.meta.Chunks[i], a.meta.Shape[i]-srcOffset[i])
		}
		copyND(buf, chunkStrides, make([]int, len(coords)), data, globalStrides, srcOffset, copyShape, a.itemSize)
		return a.writeChunk(ctx, coords, buf)
	})
}

func (a *Array) writeChunk(ctx context.Context, coords []int, raw []byte) error {
	key := joinKey(a.path, ChunkKey(coords, a.meta.separator()))
	encoded, err := encodeChunk(a.meta.Compressor, raw)
	if err != nil {
		return fmt.Errorf("failed to compress chunk %s: %w", key, err)
	}
	if err := a.store.bucket.WriteAll(ctx, key, encoded, nil); err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", key, err)
	}
	return nil
}
