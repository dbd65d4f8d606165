package vmap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeIndex(t *testing.T) {
	assert.Equal(t, []int{1, 2}, ComputeIndex(5, []int{2, 3}))
	assert.Equal(t, []int{0, 0, 0}, ComputeIndex(0, []int{2, 3, 4}))
	assert.Equal(t, []int{1, 2, 3}, ComputeIndex(23, []int{2, 3, 4}))
	assert.Equal(t, []int{}, ComputeIndex(0, nil))
}

func TestComputeIndexVisitsRowMajor(t *testing.T) {
	sizes := []int{2, 3, 4}
	n := numBatches(sizes)
	assert.Equal(t, 24, n)

	seen := make(map[string]bool, n)
	prev := []int{0, 0, -1}
	for linear := 0; linear < n; linear++ {
		idx := ComputeIndex(linear, sizes)
		key := fmt.Sprint(idx)
		assert.False(t, seen[key], "index %v visited twice", idx)
		seen[key] = true

		// Row-major: the linear index is recovered from the multi-index, and
		// consecutive indices increase lexicographically.
		assert.Equal(t, linear, (idx[0]*3+idx[1])*4+idx[2])
		assert.True(t, lexLess(prev, idx), "%v !< %v", prev, idx)
		prev = idx
	}
	assert.Len(t, seen, n)
}

func lexLess(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
