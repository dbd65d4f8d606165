// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/vmap/internal/tensor"
)

// DType is a constraint for tensor element types.
// Supported types: float32, float64, int32, int64, uint8, bool.
type DType = tensor.DType

// Number is the subset of DType accepted by arithmetic operators.
type Number = tensor.Number

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is any array value operators accept: a RawTensor or a batched wrapper.
type Tensor = tensor.Tensor

// RawTensor is a strided view over shared, typed storage.
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-filled contiguous tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// Zeros is NewRaw under its usual name.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.Zeros(shape, dtype)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Scalar creates a 0-D tensor.
func Scalar[T DType](value T) *RawTensor {
	return tensor.Scalar(value)
}

// Full creates a tensor filled with value.
func Full[T DType](shape Shape, value T) (*RawTensor, error) {
	return tensor.Full(shape, value)
}

// Arange creates a tensor holding 0, 1, ..., n-1, reshaped to shape when given.
func Arange[T Number](n int, shape ...int) (*RawTensor, error) {
	return tensor.Arange[T](n, shape...)
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
func Rand[T ~float32 | ~float64](shape Shape, rng *rand.Rand) (*RawTensor, error) {
	return tensor.Rand[T](shape, rng)
}

// Stack joins equally shaped tensors along a new leading dimension.
func Stack(ts []*RawTensor) (*RawTensor, error) {
	return tensor.Stack(ts)
}

// ToSlice returns a copy of the elements in row-major logical order.
func ToSlice[T DType](r *RawTensor) []T {
	return tensor.ToSlice[T](r)
}

// Item returns the value of a single-element tensor.
func Item[T DType](r *RawTensor) T {
	return tensor.Item[T](r)
}

// At returns the element at the given indices.
func At[T DType](r *RawTensor, indices ...int) T {
	return tensor.At[T](r, indices...)
}

// BroadcastShapes computes the NumPy-style broadcast of two shapes.
// Returns (result, needsBroadcast, error).
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
