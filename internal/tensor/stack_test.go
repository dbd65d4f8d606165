package tensor

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	a := must.M1(FromSlice([]float32{1, 2}, Shape{2}))
	b := must.M1(FromSlice([]float32{3, 4}, Shape{2}))
	c := must.M1(Arange[float32](4, 2, 2)).Select(1, 0) // strided: [0, 2]

	out, err := Stack([]*RawTensor{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, out.Shape())
	assert.True(t, out.IsContiguous())
	assert.Equal(t, []float32{1, 2, 3, 4, 0, 2}, ToSlice[float32](out))
	for i, in := range []*RawTensor{a, b, c} {
		assert.Equal(t, ToSlice[float32](in), ToSlice[float32](out.Select(0, i)))
	}
}

func TestStackScalars(t *testing.T) {
	out, err := Stack([]*RawTensor{Scalar[int64](5), Scalar[int64](7)})
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, out.Shape())
	assert.Equal(t, []int64{5, 7}, ToSlice[int64](out))
}

func TestStackErrors(t *testing.T) {
	a := must.M1(Zeros(Shape{2}, Float32))
	tests := []struct {
		name string
		ts   []*RawTensor
	}{
		{"empty", nil},
		{"undefined entry", []*RawTensor{a, nil}},
		{"shape mismatch", []*RawTensor{a, must.M1(Zeros(Shape{3}, Float32))}},
		{"dtype mismatch", []*RawTensor{a, must.M1(Zeros(Shape{2}, Float64))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stack(tt.ts)
			assert.Error(t, err)
		})
	}
}
