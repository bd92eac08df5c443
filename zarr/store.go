package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when a group or array does not exist.
	ErrNotFound = errors.New("not found")
	// ErrReadOnly is returned by write calls on a store opened for reading.
	ErrReadOnly = errors.New("store is read-only")
	// ErrOutOfBounds is returned for reads outside an array's extent.
	ErrOutOfBounds = errors.New("index out of bounds")
)

// Store is a Zarr V2 hierarchy kept in a gocloud.dev bucket.
type Store struct {
	bucket      *blob.Bucket
	url         string
	writable    bool
	concurrency int
	ioLimiter   *rate.Limiter // nil if unlimited
}

type storeOptions struct {
	writable    bool
	concurrency int
	ioLimit     int64
}

// StoreOption configures Open and NewStore.
type StoreOption func(*storeOptions)

// WithCreate opens the store for writing. Local directories are created
// when missing.
func WithCreate() StoreOption {
	return func(o *storeOptions) {
		o.writable = true
	}
}

// WithReadConcurrency bounds the number of chunks fetched in parallel by a
// single read. Values below 1 mean sequential reads.
func WithReadConcurrency(n int) StoreOption {
	return func(o *storeOptions) {
		o.concurrency = n
	}
}

// WithReadRateLimit caps the chunk bytes read per second, as stored
// (compressed). Zero means unlimited.
func WithReadRateLimit(bytesPerSec int64) StoreOption {
	return func(o *storeOptions) {
		o.ioLimit = bytesPerSec
	}
}

func defaultStoreOptions() *storeOptions {
	return &storeOptions{concurrency: 1}
}

// Open opens the bucket behind url. A url without a scheme is a local
// directory and is opened through the file:// driver. file:// and mem://
// are always available; other schemes need their driver imported.
func Open(ctx context.Context, url string, opts ...StoreOption) (*Store, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}

	bucketURL := url
	if !strings.Contains(url, "://") {
		abs, err := filepath.Abs(url)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", url, err)
		}
		if o.writable {
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", abs, err)
			}
		}
		bucketURL = "file://" + filepath.ToSlash(abs)
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return newStore(bucket, url, o), nil
}

// NewStore wraps an already opened bucket. Closing the store closes it.
func NewStore(bucket *blob.Bucket, opts ...StoreOption) *Store {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newStore(bucket, "", o)
}

func newStore(bucket *blob.Bucket, url string, o *storeOptions) *Store {
	s := &Store{
		bucket:      bucket,
		url:         url,
		writable:    o.writable,
		concurrency: max(o.concurrency, 1),
	}
	if o.ioLimit > 0 {
		s.ioLimiter = rate.NewLimiter(rate.Limit(o.ioLimit), int(o.ioLimit))
	}
	return s
}

// acquireIO waits until the read rate limit allows n more bytes.
func (s *Store) acquireIO(ctx context.Context, n int) error {
	if s.ioLimiter == nil || n <= 0 {
		return nil
	}
	return s.ioLimiter.WaitN(ctx, min(n, s.ioLimiter.Burst()))
}

// URL returns the location the store was opened from.
func (s *Store) URL() string {
	return s.url
}

// Writable reports whether the store accepts writes.
func (s *Store) Writable() bool {
	return s.writable
}

// Close closes the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// cleanPath turns "/default/train/" into "default/train"; the root is "".
func cleanPath(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

func joinKey(p, name string) string {
	p = cleanPath(p)
	if p == "" {
		return name
	}
	return p + "/" + name
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return ok, nil
}

// IsGroup reports whether p holds a .zgroup document.
func (s *Store) IsGroup(ctx context.Context, p string) (bool, error) {
	return s.exists(ctx, joinKey(p, groupKey))
}

// IsArray reports whether p holds a .zarray document.
func (s *Store) IsArray(ctx context.Context, p string) (bool, error) {
	return s.exists(ctx, joinKey(p, arrayKey))
}

// Children returns the sorted names of the members directly below p,
// groups and arrays alike.
func (s *Store) Children(ctx context.Context, p string) ([]string, error) {
	prefix := joinKey(p, "")
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var names []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		if !obj.IsDir {
			continue
		}
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/"))
	}
	sort.Strings(names)
	return names, nil
}

// CreateGroup creates p and every missing parent group.
func (s *Store) CreateGroup(ctx context.Context, p string) error {
	if !s.writable {
		return ErrReadOnly
	}
	p = cleanPath(p)
	parts := []string{""}
	if p != "" {
		segs := strings.Split(p, "/")
		for i := range segs {
			parts = append(parts, strings.Join(segs[:i+1], "/"))
		}
	}
	doc, err := json.Marshal(GroupMetadata{ZarrFormat: 2})
	if err != nil {
		return err
	}
	for _, g := range parts {
		key := joinKey(g, groupKey)
		ok, err := s.exists(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := s.bucket.WriteAll(ctx, key, doc, nil); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return nil
}

// Attrs returns the .zattrs document of a group or array; missing
// attributes yield an empty map.
func (s *Store) Attrs(ctx context.Context, p string) (map[string]any, error) {
	key := joinKey(p, attrsKey)
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	attrs := map[string]any{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return attrs, nil
}

// SetAttrs replaces the .zattrs document of p.
func (s *Store) SetAttrs(ctx context.Context, p string, attrs map[string]any) error {
	if !s.writable {
		return ErrReadOnly
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	key := joinKey(p, attrsKey)
	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// OpenArray opens the array stored at p.
func (s *Store) OpenArray(ctx context.Context, p string) (*Array, error) {
	p = cleanPath(p)
	key := joinKey(p, arrayKey)
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: array %q", ErrNotFound, "/"+p)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer reader.Close()

	meta, err := LoadMetadata(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata for %s: %w", p, err)
	}
	return newArray(s, p, meta)
}
