package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Shape represents the dimensions of a tensor.
// Zero-sized dimensions are allowed; they describe empty tensors.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks that no dimension is negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return errors.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape, in elements.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= max(s[i], 1)
	}
	return strides
}

// String formats the shape as "(2, 3)"; a scalar prints as "()".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// NormalizeDim maps a possibly negative dim into [0, rank).
// Returns an error when dim is out of range.
func NormalizeDim(dim, rank int) (int, error) {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		return 0, errors.Errorf("dimension out of range (expected to be in range of [%d, %d], but got %d)",
			-rank, rank-1, dim)
	}
	return dim, nil
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared right to left; dimensions are compatible if they are
// equal or one of them is 1, and missing dimensions are treated as 1.
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed,
// and an error if incompatible.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aDim, bDim := 1, 1
		if aIdx := len(a) - 1 - i; aIdx >= 0 {
			aDim = a[aIdx]
		}
		if bIdx := len(b) - 1 - i; bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, errors.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}
