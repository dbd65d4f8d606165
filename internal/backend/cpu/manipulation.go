package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

// transposeKernel returns a view of self with two dimensions swapped.
func transposeKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	x := requireArg(op, args, 0)
	stack.Push(dispatch.TensorValue(x.Transpose(int(args[1].ToInt()), int(args[2].ToInt()))))
	return nil
}

// catKernel concatenates tensors along an existing dimension.
func catKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	list := args[0].ToTensorList()
	if len(list) == 0 {
		exceptions.Panicf("%s: expected a non-empty list of tensors", op.Name())
	}
	parts := make([]*tensor.RawTensor, len(list))
	for i, t := range list {
		raw, ok := t.(*tensor.RawTensor)
		if !ok || raw == nil {
			exceptions.Panicf("%s: tensor %d must be a defined plain tensor, got %T", op.Name(), i, t)
		}
		parts[i] = raw
	}
	first := parts[0]
	dim, err := tensor.NormalizeDim(int(args[1].ToInt()), first.Rank())
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}

	outShape := first.Shape().Clone()
	outShape[dim] = 0
	for i, p := range parts {
		if p.Rank() != first.Rank() || p.DType() != first.DType() {
			exceptions.Panicf("%s: tensor %d is %s%v, expected rank %d and dtype %s",
				op.Name(), i, p.DType(), p.Shape(), first.Rank(), first.DType())
		}
		for d, size := range p.Shape() {
			if d != dim && size != first.Shape()[d] {
				exceptions.Panicf("%s: sizes of tensors must match except in dimension %d, got %v and %v",
					op.Name(), dim, first.Shape(), p.Shape())
			}
		}
		outShape[dim] += p.Shape()[dim]
	}

	out := newResult(op, outShape, first.DType())
	start := 0
	for _, p := range parts {
		length := p.Shape()[dim]
		if err := out.Narrow(dim, start, length).CopyFrom(p); err != nil {
			exceptions.Panicf("%s: %v", op.Name(), err)
		}
		start += length
	}
	stack.Push(dispatch.TensorValue(out))
	return nil
}

// sizeKernel returns the size of one dimension.
func sizeKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	x := requireArg(op, args, 0)
	dim, err := tensor.NormalizeDim(int(args[1].ToInt()), x.Rank())
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}
	stack.Push(dispatch.Int(int64(x.Shape()[dim])))
	return nil
}
