package zarr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor ids understood by the chunk codec.
const (
	CompressorZlib = "zlib"
	CompressorGzip = "gzip"
	CompressorZstd = "zstd"
	CompressorLZ4  = "lz4"
)

// ErrUnsupportedCompressor is returned for compressors without a codec.
var ErrUnsupportedCompressor = errors.New("unsupported compressor")

var zstdDecoderPool sync.Pool

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// decodeChunk reverses the compressor configured for an array.
// A nil config means the chunk is stored raw.
func decodeChunk(c *CompressorConfig, data []byte) ([]byte, error) {
	if c == nil {
		return data, nil
	}
	switch c.ID {
	case CompressorZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer putZstdDecoder(dec)
		return dec.DecodeAll(data, nil)
	case CompressorZlib:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to init zlib reader: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CompressorGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to init gzip reader: %w", err)
		}
		defer gr.Close()
		return io.ReadAll(gr)
	case CompressorLZ4:
		// numcodecs framing: uint32 little-endian decoded length, then an LZ4 block.
		if len(data) < 4 {
			return nil, errors.New("lz4 chunk too small for header")
		}
		size := binary.LittleEndian.Uint32(data[:4])
		if size == 0 {
			return []byte{}, nil
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data[4:], out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, errors.New("lz4 decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompressor, c.ID)
	}
}

// encodeChunk applies the compressor configured for an array.
func encodeChunk(c *CompressorConfig, data []byte) ([]byte, error) {
	if c == nil {
		return data, nil
	}
	switch c.ID {
	case CompressorZstd:
		level := zstd.SpeedDefault
		if c.Level > 0 {
			level = zstd.EncoderLevelFromZstd(c.Level)
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case CompressorZlib:
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, levelOrDefault(c.Level))
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorGzip:
		var buf bytes.Buffer
		gw, err := gzip.NewWriterLevel(&buf, levelOrDefault(c.Level))
		if err != nil {
			return nil, err
		}
		if _, err := gw.Write(data); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorLZ4:
		out := make([]byte, 4+lz4.CompressBlockBound(len(data)))
		binary.LittleEndian.PutUint32(out[:4], uint32(len(data)))
		if len(data) == 0 {
			return out[:4], nil
		}
		n, err := lz4.CompressBlock(data, out[4:], nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible
			return append(out[:4], literalBlock(data)...), nil
		}
		return out[:4+n], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompressor, c.ID)
	}
}

// literalBlock encodes data as one LZ4 sequence made only of literals.
func literalBlock(data []byte) []byte {
	n := len(data)
	out := make([]byte, 0, n+n/255+2)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xf0)
		rest := n - 15
		for ; rest >= 255; rest -= 255 {
			out = append(out, 255)
		}
		out = append(out, byte(rest))
	}
	return append(out, data...)
}

func levelOrDefault(level int) int {
	if level <= 0 {
		return -1 // DefaultCompression for zlib and gzip
	}
	return level
}
