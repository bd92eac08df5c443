package zarr

import (
	"strconv"
	"strings"
)

// GridShape calculates the number of chunks in each dimension.
// For each dimension i, the number of chunks is ceil(shape[i] / chunks[i]).
func GridShape(shape, chunks []int) []int {
	if len(shape) == 0 || len(chunks) == 0 {
		return []int{} // 0D scalar
	}
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return grid
}

// ChunkKey generates the key for a chunk given its indices and a separator.
// For Zarr V2, the separator is typically ".".
// Example: indices=[1, 4], separator="." -> "1.4"
// For 0D arrays (empty indices), it returns "0" per the Zarr spec.
func ChunkKey(indices []int, separator string) string {
	if len(indices) == 0 {
		return "0"
	}

	if len(indices) == 1 {
		return strconv.Itoa(indices[0])
	}

	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(separator)
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}

// strides computes the C-order strides for a given shape.
func strides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// iterateSubGrid iterates from start (inclusive) to end (exclusive) in each dimension.
// fn receives a fresh copy of the coordinates on every call.
func iterateSubGrid(start, end []int, fn func(indices []int) error) error {
	if len(start) == 0 {
		return fn([]int{})
	}
	for i := range start {
		if end[i] <= start[i] {
			return nil
		}
	}
	indices := make([]int, len(start))
	copy(indices, start)

	for {
		coords := make([]int, len(indices))
		copy(coords, indices)
		if err := fn(coords); err != nil {
			return err
		}

		i := len(start) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < end[i] {
				break
			}
			indices[i] = start[i]
		}
		if i < 0 {
			break
		}
	}
	return nil
}

// copyND recursively copies n-dimensional data from src to dst.
func copyND(
	dst []byte, dstStrides, dstOffset []int,
	src []byte, srcStrides, srcOffset []int,
	copyShape []int, itemSize int,
) {
	if len(copyShape) == 0 {
		// 0D scalar array: exactly one element
		copy(dst[:itemSize], src[:itemSize])
		return
	}

	startSrcIdx := 0
	startDstIdx := 0
	for i := range copyShape {
		startSrcIdx += srcOffset[i] * srcStrides[i]
		startDstIdx += dstOffset[i] * dstStrides[i]
	}

	var iterate func(dim int, currentSrcIdx, currentDstIdx int)
	iterate = func(dim int, currentSrcIdx, currentDstIdx int) {
		// bulk copy for the innermost contiguous dimension
		if dim == len(copyShape)-1 {
			n := copyShape[dim]
			if srcStrides[dim] == 1 && dstStrides[dim] == 1 {
				byteLen := n * itemSize
				srcStart := currentSrcIdx * itemSize
				dstStart := currentDstIdx * itemSize
				copy(dst[dstStart:dstStart+byteLen], src[srcStart:srcStart+byteLen])
				return
			}
			for i := 0; i < n; i++ {
				srcStart := (currentSrcIdx + i*srcStrides[dim]) * itemSize
				dstStart := (currentDstIdx + i*dstStrides[dim]) * itemSize
				copy(dst[dstStart:dstStart+itemSize], src[srcStart:srcStart+itemSize])
			}
			return
		}

		for i := 0; i < copyShape[dim]; i++ {
			iterate(dim+1, currentSrcIdx+i*srcStrides[dim], currentDstIdx+i*dstStrides[dim])
		}
	}
	iterate(0, startSrcIdx, startDstIdx)
}
