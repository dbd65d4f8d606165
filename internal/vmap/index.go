package vmap

// ComputeIndex decomposes a linear index into a multi-index over sizes, row-major
// (the last dimension varies fastest). index must be in [0, product(sizes)).
//
//	ComputeIndex(5, [2, 3]) == [1, 2]
func ComputeIndex(linear int, sizes []int) []int {
	index := make([]int, len(sizes))
	for d := len(sizes) - 1; d >= 0; d-- {
		index[d] = linear % sizes[d]
		linear /= sizes[d]
	}
	return index
}

// numBatches is the product of the batch sizes.
func numBatches(sizes []int) int {
	n := 1
	for _, s := range sizes {
		n *= s
	}
	return n
}
