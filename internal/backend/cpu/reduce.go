package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

// sumKernel sums all elements into a 0-D tensor.
func sumKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	x := requireArg(op, args, 0)
	requireNumeric(op, x)
	// A reduction over everything is a reduction over one row holding all elements.
	flat, err := x.Reshape(tensor.Shape{x.NumElements()})
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}
	out := newResult(op, tensor.Shape{}, x.DType())
	sumRows(out, flat)
	stack.Push(dispatch.TensorValue(out))
	return nil
}

// sumDimKernel sums along one dimension.
//
//	sum.dim(x of shape (2, 3, 4), dim=-1)               -> (2, 3)
//	sum.dim(x of shape (2, 3, 4), dim=-1, keepdim=True) -> (2, 3, 1)
func sumDimKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	x := requireArg(op, args, 0)
	requireNumeric(op, x)
	dim, err := tensor.NormalizeDim(int(args[1].ToInt()), x.Rank())
	if err != nil {
		exceptions.Panicf("%s: %v", op.Name(), err)
	}
	keepDim := args[2].ToBool()

	outShape := make(tensor.Shape, 0, x.Rank())
	for i, size := range x.Shape() {
		switch {
		case i != dim:
			outShape = append(outShape, size)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	out := newResult(op, outShape, x.DType())
	sumRows(out, x.MoveDim(dim, -1))
	stack.Push(dispatch.TensorValue(out))
	return nil
}

// sumRows reduces the last dimension of x into the contiguous out, one element per row.
func sumRows(out, x *tensor.RawTensor) {
	switch x.DType() {
	case tensor.Float32:
		sumRowsTyped[float32](out, x)
	case tensor.Float64:
		sumRowsTyped[float64](out, x)
	case tensor.Int32:
		sumRowsTyped[int32](out, x)
	case tensor.Int64:
		sumRowsTyped[int64](out, x)
	}
}

func sumRowsTyped[T tensor.Number](out, x *tensor.RawTensor) {
	dst, src := tensor.Elements[T](out), tensor.Elements[T](x)
	rowLen := 1
	if x.Rank() > 0 {
		rowLen = x.Shape()[x.Rank()-1]
	}
	x.ForEachOffset(func(i, pos int) {
		dst[i/rowLen] += src[pos]
	})
}

// aminmaxKernel returns the minimum and maximum over all elements as 0-D tensors.
func aminmaxKernel(op *dispatch.Operator, stack *dispatch.Stack) error {
	args := popArgs(op, stack)
	x := requireArg(op, args, 0)
	requireNumeric(op, x)
	if x.NumElements() == 0 {
		exceptions.Panicf("%s: cannot compute aminmax over an empty tensor", op.Name())
	}
	minOut := newResult(op, tensor.Shape{}, x.DType())
	maxOut := newResult(op, tensor.Shape{}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		aminmaxTyped[float32](minOut, maxOut, x)
	case tensor.Float64:
		aminmaxTyped[float64](minOut, maxOut, x)
	case tensor.Int32:
		aminmaxTyped[int32](minOut, maxOut, x)
	case tensor.Int64:
		aminmaxTyped[int64](minOut, maxOut, x)
	}
	stack.Push(dispatch.TensorValue(minOut), dispatch.TensorValue(maxOut))
	return nil
}

func aminmaxTyped[T tensor.Number](minOut, maxOut, x *tensor.RawTensor) {
	values := tensor.ToSlice[T](x)
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	tensor.Elements[T](minOut)[0] = lo
	tensor.Elements[T](maxOut)[0] = hi
}
