// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vmap/tensor"
)

// TestRawTensorAPI verifies the RawTensor alias exposes the view API.
func TestRawTensorAPI(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, tensor.Float32, x.DType())

	row := x.Select(0, 1)
	assert.Equal(t, []float32{4, 5, 6}, tensor.ToSlice[float32](row))
	assert.True(t, row.SharesStorage(x))
	assert.Equal(t, float32(6), tensor.At[float32](x.Transpose(0, 1), 2, 1))

	var _ tensor.Tensor = x
}

func TestCreation(t *testing.T) {
	s, err := tensor.Stack([]*tensor.RawTensor{tensor.Scalar[int64](1), tensor.Scalar[int64](2)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, tensor.ToSlice[int64](s))

	f, err := tensor.Full(tensor.Shape{2}, true)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, tensor.ToSlice[bool](f))

	_, err = tensor.Arange[float64](5, 2, 3)
	assert.Error(t, err)

	shape, needs, err := tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{4})
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, tensor.Shape{3, 4}, shape)
}
