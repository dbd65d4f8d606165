package cpu

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

func TestBinaryOps(t *testing.T) {
	d := newDispatcher(t)
	x := must.M1(tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	y := must.M1(tensor.FromSlice([]float32{10, 20, 30}, tensor.Shape{3}))

	out := call(t, d, "add", tv(x), tv(y))
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, tensor.ToSlice[float32](out))

	out = call(t, d, "add", tv(x), tv(y), dispatch.Float(0.5))
	assert.Equal(t, []float32{6, 12, 18, 9, 15, 21}, tensor.ToSlice[float32](out))

	out = call(t, d, "sub", tv(y), tv(x), dispatch.Int(2))
	assert.Equal(t, []float32{8, 16, 24, 2, 10, 18}, tensor.ToSlice[float32](out))

	out = call(t, d, "mul", tv(x), tv(tensor.Scalar[float32](2)))
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12}, tensor.ToSlice[float32](out))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensor.ToSlice[float32](x), "inputs untouched")
}

func TestInplaceOps(t *testing.T) {
	d := newDispatcher(t)
	x := must.M1(tensor.Arange[int64](6, 2, 3))
	// Column 1 of x: a strided view into its storage.
	col := x.Select(1, 1)
	out := call(t, d, "add_", tv(col), tv(tensor.Scalar[int64](100)))
	assert.Same(t, col, out)
	assert.Equal(t, []int64{0, 101, 2, 3, 104, 5}, tensor.ToSlice[int64](x))

	out = call(t, d, "mul_", tv(x), tv(x))
	assert.Same(t, x, out)
	assert.Equal(t, []int64{0, 10201, 4, 9, 10816, 25}, tensor.ToSlice[int64](x))

	_, err := d.Call("add_", tv(col), tv(must.M1(tensor.Zeros(tensor.Shape{3, 2}, tensor.Int64))))
	assert.ErrorContains(t, err, "doesn't match the broadcast shape")
}

func TestAddOut(t *testing.T) {
	d := newDispatcher(t)
	x := must.M1(tensor.FromSlice([]float64{1, 2}, tensor.Shape{2}))
	y := must.M1(tensor.FromSlice([]float64{3, 4}, tensor.Shape{2}))
	dst := must.M1(tensor.Zeros(tensor.Shape{2}, tensor.Float64))

	outs, err := d.Call("add.out", tv(x), tv(y), dispatch.Float(2), tv(dst))
	require.NoError(t, err)
	assert.Same(t, dst, outs[0].ToTensor())
	assert.Equal(t, []float64{7, 10}, tensor.ToSlice[float64](dst))

	_, err = d.Call("add.out", tv(x), tv(y), dispatch.Float(1), tv(must.M1(tensor.Zeros(tensor.Shape{3}, tensor.Float64))))
	assert.ErrorContains(t, err, "out has shape")

	m := must.M1(tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}))
	dst = must.M1(tensor.Zeros(tensor.Shape{2, 2}, tensor.Float64))
	_, err = d.Call("add.out", tv(m), tv(y), dispatch.Float(1), tv(dst))
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 6, 6, 8}, tensor.ToSlice[float64](dst))

	_, err = d.Call("add.out", tv(m), tv(must.M1(tensor.Zeros(tensor.Shape{3}, tensor.Float64))), dispatch.Float(1), tv(dst))
	assert.ErrorContains(t, err, "broadcasting")
}

func TestBinaryOpErrors(t *testing.T) {
	d := newDispatcher(t)
	f := must.M1(tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32))
	i := must.M1(tensor.Zeros(tensor.Shape{2, 3}, tensor.Int32))
	b := must.M1(tensor.Zeros(tensor.Shape{2, 3}, tensor.Bool))
	short := must.M1(tensor.Zeros(tensor.Shape{2}, tensor.Float32))

	_, err := d.Call("add", tv(f), tv(i))
	assert.ErrorContains(t, err, "dtype mismatch")
	_, err = d.Call("mul", tv(b), tv(b))
	assert.ErrorContains(t, err, "unsupported dtype")
	_, err = d.Call("add", tv(f), tv(short))
	assert.ErrorContains(t, err, "broadcasting")
	_, err = d.Call("add", dispatch.Undefined(), tv(f))
	assert.ErrorContains(t, err, "undefined")
}

func TestBinaryOpSplitAcrossWorkers(t *testing.T) {
	d := newDispatcher(t)
	const n = 3 * (1 << 12)
	x := must.M1(tensor.Arange[int64](n, 2, n/2))
	out := call(t, d, "add", tv(x.Transpose(0, 1)), tv(tensor.Scalar[int64](1)))
	got := tensor.ToSlice[int64](out)
	for i := range n {
		row, col := i/2, i%2
		if !assert.Equal(t, int64(col*(n/2)+row+1), got[i], "index %d", i) {
			break
		}
	}
}
