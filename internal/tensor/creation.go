package tensor

import (
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// FromSlice creates a contiguous tensor from a Go slice.
// The slice is copied into the tensor's storage.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, DataTypeOf[T]())
	if err != nil {
		return nil, err
	}
	copy(Elements[T](raw), data)
	return raw, nil
}

// Scalar creates a 0-D tensor holding value.
func Scalar[T DType](value T) *RawTensor {
	raw := mustNewRaw(Shape{}, DataTypeOf[T]())
	Elements[T](raw)[0] = value
	return raw
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return NewRaw(shape, dtype)
}

// Full creates a tensor filled with value.
func Full[T DType](shape Shape, value T) (*RawTensor, error) {
	raw, err := NewRaw(shape, DataTypeOf[T]())
	if err != nil {
		return nil, err
	}
	data := Elements[T](raw)
	for i := range data {
		data[i] = value
	}
	return raw, nil
}

// Arange creates a tensor holding 0, 1, ..., n-1 laid out with the given shape.
// The shape must have n elements; with no shape a 1-D tensor is returned.
//
//	tensor.Arange[float32](6, 2, 3) // [[0 1 2] [3 4 5]]
func Arange[T Number](n int, shape ...int) (*RawTensor, error) {
	if len(shape) == 0 {
		shape = []int{n}
	}
	raw, err := NewRaw(Shape(shape), DataTypeOf[T]())
	if err != nil {
		return nil, err
	}
	if raw.NumElements() != n {
		return nil, errors.Errorf("arange: shape %v does not hold %d elements", Shape(shape), n)
	}
	data := Elements[T](raw)
	for i := range data {
		data[i] = T(i)
	}
	return raw, nil
}

// Rand creates a float tensor with values uniformly distributed in [0, 1).
func Rand[T ~float32 | ~float64](shape Shape, rng *rand.Rand) (*RawTensor, error) {
	raw, err := NewRaw(shape, DataTypeOf[T]())
	if err != nil {
		return nil, err
	}
	data := Elements[T](raw)
	for i := range data {
		data[i] = T(rng.Float64())
	}
	return raw, nil
}

// ToSlice returns a copy of the elements in row-major logical order.
func ToSlice[T DType](r *RawTensor) []T {
	src := Elements[T](r)
	out := make([]T, r.NumElements())
	r.ForEachOffset(func(i, pos int) {
		out[i] = src[pos]
	})
	return out
}

// Item returns the value of a single-element tensor.
func Item[T DType](r *RawTensor) T {
	if r.NumElements() != 1 {
		exceptions.Panicf("Item() only works for single-element tensors, got shape %v", r.Shape())
	}
	return Elements[T](r)[r.offset]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func At[T DType](r *RawTensor, indices ...int) T {
	if len(indices) != r.Rank() {
		exceptions.Panicf("expected %d indices, got %d", r.Rank(), len(indices))
	}
	pos := r.offset
	for i, idx := range indices {
		if idx < 0 || idx >= r.shape[i] {
			exceptions.Panicf("index %d out of bounds for dimension %d (size %d)", idx, i, r.shape[i])
		}
		pos += idx * r.stride[i]
	}
	return Elements[T](r)[pos]
}
