package tensor

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaw(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, raw.Shape())
	assert.Equal(t, []int{3, 1}, raw.Strides())
	assert.True(t, raw.IsContiguous())
	assert.Equal(t, make([]float32, 6), ToSlice[float32](raw))

	_, err = NewRaw(Shape{2, -1}, Float32)
	assert.Error(t, err)

	empty, err := NewRaw(Shape{0, 3}, Int64)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumElements())
}

func TestFromSliceAndAt(t *testing.T) {
	x := must.M1(FromSlice([]int32{1, 2, 3, 4, 5, 6}, Shape{2, 3}))
	assert.Equal(t, int32(6), At[int32](x, 1, 2))
	assert.Equal(t, int32(2), At[int32](x, 0, 1))

	_, err := FromSlice([]int32{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)
	assert.Panics(t, func() { At[int32](x, 2, 0) })
	assert.Panics(t, func() { ToSlice[float64](x) }, "dtype mismatch must panic")
}

func TestSelectSharesStorage(t *testing.T) {
	x := must.M1(Arange[float32](6, 2, 3))
	row := x.Select(0, 1)
	assert.Equal(t, Shape{3}, row.Shape())
	assert.Equal(t, []float32{3, 4, 5}, ToSlice[float32](row))
	assert.True(t, row.SharesStorage(x))

	col := x.Select(1, -1)
	assert.Equal(t, []float32{2, 5}, ToSlice[float32](col))

	// Writing through a view is visible in the base tensor.
	Elements[float32](row)[row.Offset()] = 42
	assert.Equal(t, float32(42), At[float32](x, 1, 0))

	assert.Panics(t, func() { x.Select(0, 2) })
}

func TestIndex(t *testing.T) {
	x := must.M1(Arange[int64](24, 2, 3, 4))
	v := x.Index(1, 2)
	assert.Equal(t, Shape{4}, v.Shape())
	assert.Equal(t, []int64{20, 21, 22, 23}, ToSlice[int64](v))

	all := x.Index()
	assert.Equal(t, x.Shape(), all.Shape())

	scalar := x.Index(0, 1, 3)
	assert.Equal(t, Shape{}, scalar.Shape())
	assert.Equal(t, int64(7), Item[int64](scalar))
}

func TestNarrow(t *testing.T) {
	x := must.M1(Arange[int32](10, 2, 5))
	v := x.Narrow(1, 1, 3)
	assert.Equal(t, Shape{2, 3}, v.Shape())
	assert.Equal(t, []int32{1, 2, 3, 6, 7, 8}, ToSlice[int32](v))
	assert.Panics(t, func() { x.Narrow(1, 3, 3) })
}

func TestUnsqueezeExpand(t *testing.T) {
	x := must.M1(FromSlice([]float64{1, 2, 3}, Shape{3}))
	u := x.Unsqueeze(0)
	assert.Equal(t, Shape{1, 3}, u.Shape())

	e := u.Expand(Shape{4, -1})
	assert.Equal(t, Shape{4, 3}, e.Shape())
	assert.Equal(t, 0, e.Strides()[0])
	assert.False(t, e.IsContiguous())
	assert.Equal(t, []float64{1, 2, 3, 1, 2, 3, 1, 2, 3, 1, 2, 3}, ToSlice[float64](e))

	assert.Panics(t, func() { e.Expand(Shape{4, 5}) })

	last := x.Unsqueeze(-1)
	assert.Equal(t, Shape{3, 1}, last.Shape())
	assert.Equal(t, Shape{3}, last.Squeeze(1).Shape())
}

func TestBroadcastTo(t *testing.T) {
	x := must.M1(FromSlice([]int32{1, 2}, Shape{2, 1}))
	b, err := x.BroadcastTo(Shape{3, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2, 4}, b.Shape())
	assert.Equal(t, int32(2), At[int32](b, 2, 1, 3))

	_, err = x.BroadcastTo(Shape{3, 3})
	assert.Error(t, err)
}

func TestPermuteMoveDim(t *testing.T) {
	x := must.M1(Arange[int32](24, 2, 3, 4))
	p := x.Permute(2, 0, 1)
	assert.Equal(t, Shape{4, 2, 3}, p.Shape())
	assert.Equal(t, At[int32](x, 1, 2, 3), At[int32](p, 3, 1, 2))

	m := x.MoveDim(0, -1)
	assert.Equal(t, Shape{3, 4, 2}, m.Shape())
	assert.Equal(t, At[int32](x, 1, 0, 2), At[int32](m, 0, 2, 1))

	tr := x.Transpose(0, 2)
	assert.Equal(t, Shape{4, 3, 2}, tr.Shape())
	assert.Panics(t, func() { x.Permute(0, 0, 1) })
}

func TestViewReshape(t *testing.T) {
	x := must.M1(Arange[float32](6, 2, 3))
	v, err := x.View(Shape{3, 2})
	require.NoError(t, err)
	assert.True(t, v.SharesStorage(x))
	assert.Equal(t, float32(3), At[float32](v, 1, 1))

	_, err = x.View(Shape{4})
	assert.Error(t, err)

	tr := x.Transpose(0, 1)
	_, err = tr.View(Shape{6})
	assert.Error(t, err, "non-contiguous view must fail")

	r, err := tr.Reshape(Shape{6})
	require.NoError(t, err)
	assert.False(t, r.SharesStorage(x))
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, ToSlice[float32](r))
}

func TestCloneAndCopyFrom(t *testing.T) {
	x := must.M1(Arange[int64](6, 2, 3))
	c := x.Transpose(0, 1).Clone()
	assert.True(t, c.IsContiguous())
	assert.False(t, c.SharesStorage(x))
	assert.Equal(t, []int64{0, 3, 1, 4, 2, 5}, ToSlice[int64](c))

	dst := must.M1(Zeros(Shape{2, 3}, Int64))
	require.NoError(t, dst.CopyFrom(must.M1(FromSlice([]int64{7, 8, 9}, Shape{3}))))
	assert.Equal(t, []int64{7, 8, 9, 7, 8, 9}, ToSlice[int64](dst))

	assert.Error(t, dst.CopyFrom(must.M1(FromSlice([]float32{1}, Shape{1}))))
}

func TestShapeHelpers(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 0, Shape{3, 0}.NumElements())
	assert.Equal(t, "(2, 3)", Shape{2, 3}.String())
	assert.Equal(t, "()", Shape{}.String())

	d, err := NormalizeDim(-1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d)
	_, err = NormalizeDim(3, 3)
	assert.Error(t, err)

	tests := []struct {
		a, b, want Shape
		broadcast  bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{5}, Shape{2, 1}, Shape{2, 5}, true},
	}
	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast)
	}
	_, _, err = BroadcastShapes(Shape{3, 4}, Shape{3, 5})
	assert.Error(t, err)
}
