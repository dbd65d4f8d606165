package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

// reluKernel computes max(0, x).
func reluKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	x := requireArg(op, args, 0)
	requireNumeric(op, x)
	out := newResult(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		reluTyped[float32](out, nil, x)
	case tensor.Float64:
		reluTyped[float64](out, nil, x)
	case tensor.Int32:
		reluTyped[int32](out, nil, x)
	case tensor.Int64:
		reluTyped[int64](out, nil, x)
	}
	stack.Push(dispatch.TensorValue(out))
	return nil
}

// reluBackwardKernel computes grad_output where self > 0 and zero elsewhere.
// An undefined grad_output (no gradient flowing) gives an undefined result.
func reluBackwardKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	grad, x := rawArg(op, args, 0), requireArg(op, args, 1)
	if grad == nil {
		stack.Push(dispatch.Undefined())
		return nil
	}
	requireNumeric(op, grad, x)
	g, err := grad.BroadcastTo(x.Shape())
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}
	out := newResult(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		reluTyped[float32](out, g, x)
	case tensor.Float64:
		reluTyped[float64](out, g, x)
	case tensor.Int32:
		reluTyped[int32](out, g, x)
	case tensor.Int64:
		reluTyped[int64](out, g, x)
	}
	stack.Push(dispatch.TensorValue(out))
	return nil
}

// reluTyped writes x (or grad, when given) where x > 0 into the contiguous out.
func reluTyped[T tensor.Number](out, grad, x *tensor.RawTensor) {
	dst, src := tensor.Elements[T](out), tensor.ToSlice[T](x)
	pass := src
	if grad != nil {
		pass = tensor.ToSlice[T](grad)
	}
	for i, v := range src {
		if v > 0 {
			dst[i] = pass[i]
		}
	}
}
