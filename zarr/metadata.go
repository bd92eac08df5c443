package zarr

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

const (
	groupKey = ".zgroup"
	arrayKey = ".zarray"
	attrsKey = ".zattrs"
)

// CompressorConfig represents the Zarr compressor metadata.
type CompressorConfig struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
	Level   int    `json:"level,omitempty"`
}

// Metadata represents the Zarr V2 .zarray metadata.
type Metadata struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int             `json:"shape"`
	Chunks             []int             `json:"chunks"`
	DType              string            `json:"dtype"`
	Compressor         *CompressorConfig `json:"compressor"`
	FillValue          interface{}       `json:"fill_value"`
	Order              string            `json:"order"`
	Filters            []json.RawMessage `json:"filters"`
	DimensionSeparator string            `json:"dimension_separator,omitempty"`
}

// GroupMetadata represents the Zarr V2 .zgroup metadata.
type GroupMetadata struct {
	ZarrFormat int `json:"zarr_format"`
}

// LoadMetadata reads and parses a .zarray document.
func LoadMetadata(reader io.Reader) (*Metadata, error) {
	var meta Metadata
	if err := json.NewDecoder(reader).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Validate checks the fields the reader depends on.
func (m *Metadata) Validate() error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("unsupported zarr_format: %d, expected 2", m.ZarrFormat)
	}
	if len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("chunks rank %d does not match shape rank %d", len(m.Chunks), len(m.Shape))
	}
	for i, c := range m.Chunks {
		if c <= 0 {
			return fmt.Errorf("invalid chunk size %d at dimension %d", c, i)
		}
		if m.Shape[i] < 0 {
			return fmt.Errorf("invalid shape %d at dimension %d", m.Shape[i], i)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("unsupported order: %s", m.Order)
	}
	if len(m.Filters) > 0 {
		return fmt.Errorf("filters are unsupported")
	}
	if _, _, err := ParseDType(m.DType); err != nil {
		return err
	}
	return nil
}

func (m *Metadata) separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// ParseDType takes a numpy-style string like "<f4", "|b1", "<i8",
// and returns a simplified string name (e.g., "float32", "bool", "int64"),
// the byte size (e.g., 4, 1, 8), and an error if unsupported.
// Big-endian (>) types are rejected.
func ParseDType(s string) (string, int, error) {
	if len(s) < 3 {
		return "", 0, fmt.Errorf("invalid dtype: %s", s)
	}

	endian := s[0]
	if endian == '>' {
		return "", 0, fmt.Errorf("big-endian types are unsupported: %s", s)
	}
	if endian != '<' && endian != '|' {
		return "", 0, fmt.Errorf("invalid byte order in dtype: %s", s)
	}

	kind := s[1]
	sizeStr := s[2:]

	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid size in dtype: %s", s)
	}

	switch kind {
	case 'b':
		return "bool", size, nil
	case 'i':
		return fmt.Sprintf("int%d", size*8), size, nil
	case 'u':
		return fmt.Sprintf("uint%d", size*8), size, nil
	case 'f':
		return fmt.Sprintf("float%d", size*8), size, nil
	case 'c':
		return fmt.Sprintf("complex%d", size*8), size, nil
	default:
		return "", 0, fmt.Errorf("unsupported dtype kind: %c in %s", kind, s)
	}
}

// itemSize is ParseDType without the name.
func itemSize(dtype string) (int, error) {
	_, size, err := ParseDType(dtype)
	return size, err
}
