package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/parallel"
	"github.com/born-ml/vmap/internal/tensor"
)

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
)

// binaryKernel builds the kernel of an element-wise operator with NumPy-style
// broadcasting. In-place kernels write into self, which must already have the
// broadcast shape, and return it.
func binaryKernel(kind binaryOp, inplace bool) dispatch.Kernel {
	return func(op *dispatch.Operator, stack *dispatch.Stack) error {
		args := popArgs(op, stack)
		self, other := requireArg(op, args, 0), requireArg(op, args, 1)
		alpha := 1.0
		if len(args) > 2 {
			alpha = args[2].ToFloat()
		}
		requireNumeric(op, self, other)

		shape, _, err := tensor.BroadcastShapes(self.Shape(), other.Shape())
		if err != nil {
			exceptions.Panicf("%s: %v", op.Name(), err)
		}
		var out *tensor.RawTensor
		if inplace {
			if !shape.Equal(self.Shape()) {
				exceptions.Panicf("%s: output with shape %v doesn't match the broadcast shape %v",
					op.Name(), self.Shape(), shape)
			}
			out = self
		} else {
			out = newResult(op, shape, self.DType())
		}
		a, err := self.BroadcastTo(shape)
		if err != nil {
			exceptions.Panicf("%s: %v", op.Name(), err)
		}
		b, err := other.BroadcastTo(shape)
		if err != nil {
			exceptions.Panicf("%s: %v", op.Name(), err)
		}
		applyBinary(out, a, b, kind, alpha)
		stack.Push(dispatch.TensorValue(out))
		return nil
	}
}

// addOutKernel computes self + alpha*other into out.
func addOutKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	self, other, out := requireArg(op, args, 0), requireArg(op, args, 1), requireArg(op, args, 3)
	requireNumeric(op, self, other, out)
	shape, _, err := tensor.BroadcastShapes(self.Shape(), other.Shape())
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}
	if !shape.Equal(out.Shape()) {
		exceptions.Panicf("%s: out has shape %v, expected %v", op.Name(), out.Shape(), shape)
	}
	a, err := self.BroadcastTo(shape)
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}
	b, err := other.BroadcastTo(shape)
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}
	applyBinary(out, a, b, opAdd, args[2].ToFloat())
	stack.Push(dispatch.TensorValue(out))
	return nil
}

// applyBinary writes a <op> b into out; all three have the same shape.
func applyBinary(out, a, b *tensor.RawTensor, kind binaryOp, alpha float64) {
	switch out.DType() {
	case tensor.Float32:
		binaryTyped[float32](out, a, b, kind, alpha)
	case tensor.Float64:
		binaryTyped[float64](out, a, b, kind, alpha)
	case tensor.Int32:
		binaryTyped[int32](out, a, b, kind, alpha)
	case tensor.Int64:
		binaryTyped[int64](out, a, b, kind, alpha)
	default:
		exceptions.Panicf("binary op: unsupported dtype %s", out.DType())
	}
}

func binaryTyped[T tensor.Number](out, a, b *tensor.RawTensor, kind binaryOp, alpha float64) {
	scale := T(alpha)
	var fn func(x, y T) T
	switch kind {
	case opAdd:
		fn = func(x, y T) T { return x + scale*y }
	case opSub:
		fn = func(x, y T) T { return x - scale*y }
	case opMul:
		fn = func(x, y T) T { return x * y }
	}
	dst, x, y := tensor.Elements[T](out), tensor.Elements[T](a), tensor.Elements[T](b)
	// Read both inputs before writing: out may share storage with a or b.
	aPos, bPos := a.Offsets(), b.Offsets()
	results := make([]T, len(aPos))
	parallel.Range(len(results), workers, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = fn(x[aPos[i]], y[bPos[i]])
		}
	})
	out.ForEachOffset(func(i, pos int) {
		dst[pos] = results[i]
	})
}
