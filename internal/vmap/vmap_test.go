package vmap

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vmap/internal/tensor"
)

func TestVmapInAndOutDims(t *testing.T) {
	d := newDispatcher(t)
	// Map over the columns of x: each example is a column of length 3.
	x := must.M1(tensor.Arange[float32](12, 3, 4))
	sumDim := func(xs ...tensor.Tensor) ([]tensor.Tensor, error) {
		return call(d, "sum", xs[0])
	}
	outs, err := Vmap(d, sumDim, []int{1}, nil)(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{12, 15, 18, 21}, tensor.ToSlice[float32](raw(t, outs[0])))

	y := must.M1(tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}))
	outs, err = Vmap(d, opFunc(d, "mul"), []int{1, NotBatched}, []int{1})(x, y)
	require.NoError(t, err)
	out := raw(t, outs[0])
	assert.Equal(t, tensor.Shape{3, 4}, out.Shape())
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, tensor.At[float32](x, i, j)*tensor.At[float32](y, i), tensor.At[float32](out, i, j))
		}
	}
}

func TestVmapMatmul(t *testing.T) {
	d := newDispatcher(t)
	a := must.M1(tensor.Arange[float64](12, 3, 2, 2))
	b := must.M1(tensor.FromSlice([]float64{1, 0, 0, 2}, tensor.Shape{2, 2}))
	outs, err := Vmap(d, opFunc(d, "matmul"), []int{0, NotBatched}, nil)(a, b)
	require.NoError(t, err)
	out := raw(t, outs[0])
	assert.Equal(t, tensor.Shape{3, 2, 2}, out.Shape())
	// Right-multiplying by diag(1, 2) doubles the second column.
	assert.Equal(t, []float64{0, 2, 2, 6, 4, 10, 6, 14, 8, 18, 10, 22}, tensor.ToSlice[float64](out))
}

func TestVmapBroadcastsUnbatchedOutputs(t *testing.T) {
	d := newDispatcher(t)
	x := must.M1(tensor.Zeros(tensor.Shape{4, 2}, tensor.Int32))
	c := must.M1(tensor.FromSlice([]int32{7, 8}, tensor.Shape{2}))
	constant := func(...tensor.Tensor) ([]tensor.Tensor, error) {
		return []tensor.Tensor{c, nil}, nil
	}
	outs, err := Vmap(d, constant, []int{0}, nil)(x)
	require.NoError(t, err)
	out := raw(t, outs[0])
	assert.Equal(t, tensor.Shape{4, 2}, out.Shape())
	assert.Equal(t, []int32{7, 8, 7, 8, 7, 8, 7, 8}, tensor.ToSlice[int32](out))
	assert.Nil(t, outs[1])
}

func TestVmapErrors(t *testing.T) {
	d := newDispatcher(t)
	x := must.M1(tensor.Zeros(tensor.Shape{4, 2}, tensor.Float32))
	y := must.M1(tensor.Zeros(tensor.Shape{3, 2}, tensor.Float32))
	add := opFunc(d, "add")

	_, err := Vmap(d, add, []int{0}, nil)(x, y)
	assert.Error(t, err, "in_dims length")
	_, err = Vmap(d, add, []int{0, 0}, nil)(x, y)
	assert.Error(t, err, "inconsistent batch sizes")
	_, err = Vmap(d, add, []int{NotBatched, NotBatched}, nil)(x, y)
	assert.Error(t, err, "nothing batched")
	_, err = Vmap(d, add, []int{2, 0}, nil)(x, x)
	assert.Error(t, err, "in_dim out of range")
	_, err = Vmap(d, add, []int{0, 0}, []int{0, 1})(x, x)
	assert.Error(t, err, "out_dims length")
	_, err = Vmap(d, add, []int{0, 0}, []int{3})(x, x)
	assert.Error(t, err, "out_dim out of range")
	assert.Equal(t, 0, d.Layers().Depth())
}

func TestVmapLevelPoppedOnPanic(t *testing.T) {
	d := newDispatcher(t)
	x := must.M1(tensor.Zeros(tensor.Shape{2}, tensor.Float32))
	boom := func(...tensor.Tensor) ([]tensor.Tensor, error) { panic("boom") }
	assert.Panics(t, func() { _, _ = Vmap(d, boom, []int{0}, nil)(x) })
	assert.Equal(t, 0, d.Layers().Depth())
}
