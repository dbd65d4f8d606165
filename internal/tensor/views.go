package tensor

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// view returns a RawTensor sharing r's storage with new geometry.
func (r *RawTensor) view(shape Shape, stride []int, offset int) *RawTensor {
	return &RawTensor{
		store:  r.store,
		shape:  shape,
		stride: stride,
		offset: offset,
		dtype:  r.dtype,
	}
}

func (r *RawTensor) mustDim(op string, dim, rank int) int {
	d, err := NormalizeDim(dim, rank)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	return d
}

// Select returns the slice at index along dim; the result has one dimension less.
func (r *RawTensor) Select(dim, index int) *RawTensor {
	dim = r.mustDim("select", dim, r.Rank())
	size := r.shape[dim]
	if index < 0 {
		index += size
	}
	if index < 0 || index >= size {
		exceptions.Panicf("select: index %d out of range for dimension %d with size %d", index, dim, size)
	}
	shape := slices.Delete(r.shape.Clone(), dim, dim+1)
	stride := slices.Delete(slices.Clone(r.stride), dim, dim+1)
	return r.view(shape, stride, r.offset+index*r.stride[dim])
}

// Narrow returns the view of length elements along dim starting at start.
func (r *RawTensor) Narrow(dim, start, length int) *RawTensor {
	dim = r.mustDim("narrow", dim, r.Rank())
	if start < 0 || length < 0 || start+length > r.shape[dim] {
		exceptions.Panicf("narrow: range [%d, %d) out of bounds for dimension %d with size %d",
			start, start+length, dim, r.shape[dim])
	}
	shape := r.shape.Clone()
	shape[dim] = length
	return r.view(shape, slices.Clone(r.stride), r.offset+start*r.stride[dim])
}

// Index selects index[k] along each leading dimension k, leaving the remaining
// dimensions unconstrained.
func (r *RawTensor) Index(index ...int) *RawTensor {
	if len(index) > r.Rank() {
		exceptions.Panicf("index: too many indices (%d) for tensor of rank %d", len(index), r.Rank())
	}
	out := r
	for _, i := range index {
		out = out.Select(0, i)
	}
	return out
}

// Unsqueeze inserts a dimension of size 1 at dim.
func (r *RawTensor) Unsqueeze(dim int) *RawTensor {
	dim = r.mustDim("unsqueeze", dim, r.Rank()+1)
	stride := 1
	if dim < r.Rank() {
		stride = r.stride[dim] * r.shape[dim]
	}
	shape := slices.Insert(r.shape.Clone(), dim, 1)
	strides := slices.Insert(slices.Clone(r.stride), dim, stride)
	return r.view(shape, strides, r.offset)
}

// Squeeze removes dim, which must have size 1.
func (r *RawTensor) Squeeze(dim int) *RawTensor {
	dim = r.mustDim("squeeze", dim, r.Rank())
	if r.shape[dim] != 1 {
		exceptions.Panicf("squeeze: dimension %d has size %d, expected 1", dim, r.shape[dim])
	}
	return r.Select(dim, 0)
}

// Expand broadcasts size-1 dimensions to the sizes in shape without copying.
// shape must have the same rank as r; -1 keeps a dimension's size.
func (r *RawTensor) Expand(shape Shape) *RawTensor {
	if len(shape) != r.Rank() {
		exceptions.Panicf("expand: target %v has rank %d, tensor has rank %d", shape, len(shape), r.Rank())
	}
	newShape := make(Shape, len(shape))
	stride := slices.Clone(r.stride)
	for i, size := range shape {
		switch {
		case size == -1 || size == r.shape[i]:
			newShape[i] = r.shape[i]
		case r.shape[i] == 1:
			newShape[i] = size
			stride[i] = 0
		default:
			exceptions.Panicf("expand: cannot expand dimension %d of size %d to %d", i, r.shape[i], size)
		}
	}
	return r.view(newShape, stride, r.offset)
}

// BroadcastTo returns a view of r broadcast to shape following NumPy rules.
func (r *RawTensor) BroadcastTo(shape Shape) (*RawTensor, error) {
	out, _, err := BroadcastShapes(r.shape, shape)
	if err != nil {
		return nil, err
	}
	if !out.Equal(shape) {
		return nil, errors.Errorf("cannot broadcast %v to %v", r.shape, shape)
	}
	v := r
	for v.Rank() < len(shape) {
		v = v.Unsqueeze(0)
	}
	return v.Expand(shape), nil
}

// Permute reorders dimensions: output dim i is input dim axes[i].
func (r *RawTensor) Permute(axes ...int) *RawTensor {
	if len(axes) != r.Rank() {
		exceptions.Panicf("permute: got %d axes for tensor of rank %d", len(axes), r.Rank())
	}
	seen := make([]bool, r.Rank())
	shape := make(Shape, r.Rank())
	stride := make([]int, r.Rank())
	for i, a := range axes {
		a = r.mustDim("permute", a, r.Rank())
		if seen[a] {
			exceptions.Panicf("permute: repeated axis %d in %v", a, axes)
		}
		seen[a] = true
		shape[i] = r.shape[a]
		stride[i] = r.stride[a]
	}
	return r.view(shape, stride, r.offset)
}

// MoveDim moves dimension src to position dst, keeping the order of the others.
func (r *RawTensor) MoveDim(src, dst int) *RawTensor {
	src = r.mustDim("movedim", src, r.Rank())
	dst = r.mustDim("movedim", dst, r.Rank())
	if src == dst {
		return r
	}
	axes := make([]int, 0, r.Rank())
	for i := 0; i < r.Rank(); i++ {
		if i != src {
			axes = append(axes, i)
		}
	}
	axes = slices.Insert(axes, dst, src)
	return r.Permute(axes...)
}

// Transpose swaps two dimensions.
func (r *RawTensor) Transpose(dim0, dim1 int) *RawTensor {
	dim0 = r.mustDim("transpose", dim0, r.Rank())
	dim1 = r.mustDim("transpose", dim1, r.Rank())
	axes := make([]int, r.Rank())
	for i := range axes {
		axes[i] = i
	}
	axes[dim0], axes[dim1] = axes[dim1], axes[dim0]
	return r.Permute(axes...)
}

// View reinterprets a contiguous tensor with a new shape of the same size.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "view")
	}
	if shape.NumElements() != r.NumElements() {
		return nil, errors.Errorf("view: shape %v is invalid for input of size %d", shape, r.NumElements())
	}
	if !r.IsContiguous() {
		return nil, errors.Errorf("view: tensor with shape %v and strides %v is not contiguous", r.shape, r.stride)
	}
	return r.view(shape.Clone(), shape.ComputeStrides(), r.offset), nil
}

// Reshape is View, copying into contiguous storage first when needed.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	return r.Contiguous().View(shape)
}
