package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned for unknown split, field or column names.
	ErrKeyNotFound = errors.New("key not found")
	// ErrMissingField is returned when a field name is required but empty.
	ErrMissingField = errors.New("field is required")
	// ErrNonPositive is returned when a row count must be positive.
	ErrNonPositive = errors.New("n must be positive")
	// ErrInvalidIndex is returned for index values that are neither an
	// integer nor a sequence of integers.
	ErrInvalidIndex = errors.New("invalid index type")
	// ErrEmptyIndex is returned when a row selection is empty.
	ErrEmptyIndex = errors.New("empty index")
	// ErrIndexOutOfRange is returned for negative or too large row indices.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// KeyError names the kind of key that could not be resolved.
type KeyError struct {
	Kind string // "set", "field" or "column"
	Key  string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *KeyError) Unwrap() error { return ErrKeyNotFound }

// IndexError reports an index outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for length %d", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }
