package vmap

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

func TestMakeBatched(t *testing.T) {
	value := must.M1(tensor.Arange[float32](24, 2, 3, 4))
	b, err := MakeBatched(value, []BatchDim{{Level: 2, Dim: 2}, {Level: 1, Dim: 0}})
	require.NoError(t, err)
	assert.Equal(t, []BatchDim{{Level: 1, Dim: 0}, {Level: 2, Dim: 2}}, b.BatchDims(), "sorted by level")
	assert.Equal(t, tensor.Shape{3}, b.Shape())
	assert.Equal(t, tensor.Float32, b.DType())
	assert.Equal(t, NewLevelSet(1, 2), b.Levels())
	assert.Equal(t, 4, b.BatchSize(2))
	assert.Equal(t, 0, b.BatchSize(3))
	assert.Equal(t, dispatch.KeyBatched, b.DispatchKey())

	invalid := [][]BatchDim{
		nil,
		{{Level: 0, Dim: 0}},
		{{Level: 64, Dim: 0}},
		{{Level: 1, Dim: 0}, {Level: 1, Dim: 1}},
		{{Level: 1, Dim: 3}},
		{{Level: 1, Dim: 0}, {Level: 2, Dim: 0}},
	}
	for _, bdims := range invalid {
		_, err := MakeBatched(value, bdims)
		assert.Error(t, err, "%v", bdims)
	}
	_, err = MakeBatched(nil, []BatchDim{{Level: 1, Dim: 0}})
	assert.Error(t, err)
}

func TestAddBatchDim(t *testing.T) {
	value := must.M1(tensor.Arange[int32](24, 2, 3, 4))
	b1, err := AddBatchDim(value, 1, -1)
	require.NoError(t, err)
	assert.Equal(t, []BatchDim{{Level: 1, Dim: 2}}, b1.BatchDims())
	assert.Equal(t, tensor.Shape{2, 3}, b1.Shape())

	// Logical dim 1 of b1 is physical dim 1; logical dim 0 is physical dim 0.
	b2, err := AddBatchDim(b1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []BatchDim{{Level: 1, Dim: 2}, {Level: 2, Dim: 1}}, b2.BatchDims())
	assert.Equal(t, tensor.Shape{2}, b2.Shape())
	assert.Same(t, value, b2.Value())

	_, err = AddBatchDim(b2, 1, 0)
	assert.Error(t, err, "levels must increase")
	_, err = AddBatchDim(b2, 3, 1)
	assert.Error(t, err, "dim out of range")
}

func TestRemoveBatchDim(t *testing.T) {
	value := must.M1(tensor.Arange[int32](24, 2, 3, 4))
	b := must.M1(MakeBatched(value, []BatchDim{{Level: 1, Dim: 0}, {Level: 2, Dim: 2}}))

	// Removing level 2 to logical position 0: result batched at level 1, logical (4, 3).
	out, err := removeBatchDim(b, 2, 4, 0)
	require.NoError(t, err)
	ob, ok := MaybeBatched(out)
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{4, 3}, ob.Shape())
	assert.Equal(t, NewLevelSet(1), ob.Levels())
	d1, _ := ob.BatchDim(1)
	// Element [batch1=1][l2=3][j=2] == value[1, 2, 3].
	idx := []int{0, 0, 0}
	idx[d1] = 1
	rest := []int{3, 2}
	for d, k := 0, 0; d < 3; d++ {
		if d != d1 {
			idx[d] = rest[k]
			k++
		}
	}
	assert.Equal(t, tensor.At[int32](value, 1, 2, 3), tensor.At[int32](ob.Value(), idx...))

	// Removing the last level yields a plain tensor with the batch dim at out_dim.
	flat, err := removeBatchDim(out, 1, 2, -1)
	require.NoError(t, err)
	r := raw(t, flat)
	assert.Equal(t, tensor.Shape{4, 3, 2}, r.Shape())
	assert.Equal(t, tensor.At[int32](value, 1, 2, 3), tensor.At[int32](r, 3, 2, 1))
}

func TestRemoveBatchDimBroadcastsUnbatched(t *testing.T) {
	x := must.M1(tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}))
	out, err := removeBatchDim(x, 1, 4, 1)
	require.NoError(t, err)
	r := raw(t, out)
	assert.Equal(t, tensor.Shape{3, 4}, r.Shape())
	assert.Equal(t, float32(3), tensor.At[float32](r, 2, 3))

	// Batched only at a lower level: the new dim is inserted logically.
	b := must.M1(MakeBatched(must.M1(tensor.Arange[float32](6, 2, 3)), []BatchDim{{Level: 1, Dim: 0}}))
	out, err = removeBatchDim(b, 2, 5, 0)
	require.NoError(t, err)
	ob, ok := MaybeBatched(out)
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{5, 3}, ob.Shape())
	assert.Equal(t, tensor.Shape{2, 5, 3}, ob.Value().Shape())
	assert.Equal(t, []BatchDim{{Level: 1, Dim: 0}}, ob.BatchDims())
}
