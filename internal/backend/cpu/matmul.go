package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/parallel"
	"github.com/born-ml/vmap/internal/tensor"
)

// matmulKernel multiplies two matrices: (M, K) @ (K, N) -> (M, N).
func matmulKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	a, b := requireArg(op, args, 0), requireArg(op, args, 1)
	requireNumeric(op, a, b)
	if a.Rank() != 2 || b.Rank() != 2 {
		exceptions.Panicf("%s: only 2D tensors supported, got %dD and %dD", op.Name(), a.Rank(), b.Rank())
	}
	m, k := a.Shape()[0], a.Shape()[1]
	kAlt, n := b.Shape()[0], b.Shape()[1]
	if k != kAlt {
		exceptions.Panicf("%s: shape mismatch [%d,%d] @ [%d,%d]", op.Name(), m, k, kAlt, n)
	}

	out := newResult(op, tensor.Shape{m, n}, a.DType())
	switch a.DType() {
	case tensor.Float32:
		matmulTyped[float32](out, a, b, m, k, n)
	case tensor.Float64:
		matmulTyped[float64](out, a, b, m, k, n)
	case tensor.Int32:
		matmulTyped[int32](out, a, b, m, k, n)
	case tensor.Int64:
		matmulTyped[int64](out, a, b, m, k, n)
	}
	stack.Push(dispatch.TensorValue(out))
	return nil
}

// matmulTyped is the naive triple loop, i-k-j ordered for row-major access.
// C[i,j] = sum_k A[i,k] * B[k,j]
func matmulTyped[T tensor.Number](out, a, b *tensor.RawTensor, m, k, n int) {
	c := tensor.Elements[T](out)
	x, y := tensor.ToSlice[T](a), tensor.ToSlice[T](b)
	parallel.Range(m, rowWorkers(k*n), func(start, end int) {
		for i := start; i < end; i++ {
			for p := 0; p < k; p++ {
				aip := x[i*k+p]
				for j := 0; j < n; j++ {
					c[i*n+j] += aip * y[p*n+j]
				}
			}
		}
	})
}
