package zarr

import (
	"bytes"
	"fmt"
)

// Text is stored as fixed-width |u1 codepoint arrays padded with NUL.

// EncodeString encodes one string as a one-dimensional |u1 array.
func EncodeString(s string) (NDArray, error) {
	if err := checkASCII(s); err != nil {
		return NDArray{}, err
	}
	return NDArray{DType: "|u1", Shape: []int{len(s)}, Data: []byte(s)}, nil
}

// EncodeStrings encodes strings as an N x W |u1 array, W being the longest
// string (at least 1).
func EncodeStrings(strs []string) (NDArray, error) {
	width := 1
	for _, s := range strs {
		if err := checkASCII(s); err != nil {
			return NDArray{}, err
		}
		width = max(width, len(s))
	}
	data := make([]byte, len(strs)*width)
	for i, s := range strs {
		copy(data[i*width:], s)
	}
	return NDArray{DType: "|u1", Shape: []int{len(strs), width}, Data: data}, nil
}

// DecodeString reads a NUL-padded codepoint sequence.
func DecodeString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// DecodeString decodes a one-dimensional text array.
func (a NDArray) DecodeString() (string, error) {
	if err := a.checkText(1); err != nil {
		return "", err
	}
	return DecodeString(a.Data), nil
}

// DecodeStrings decodes every row of a two-dimensional text array.
func (a NDArray) DecodeStrings() ([]string, error) {
	if err := a.checkText(2); err != nil {
		return nil, err
	}
	out := make([]string, a.Shape[0])
	w := a.Shape[1]
	for i := range out {
		out[i] = DecodeString(a.Data[i*w : (i+1)*w])
	}
	return out, nil
}

func (a NDArray) checkText(rank int) error {
	if a.DType != "|u1" && a.DType != "|i1" {
		return fmt.Errorf("cannot decode %s data as text", a.DType)
	}
	if len(a.Shape) != rank {
		return fmt.Errorf("cannot decode rank %d array as rank %d text", len(a.Shape), rank)
	}
	return nil
}

func checkASCII(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return fmt.Errorf("non-ASCII byte %#x at offset %d in %q", s[i], i, s)
		}
	}
	return nil
}
