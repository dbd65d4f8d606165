package tensor

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Tensor is the array value the dispatcher moves around: a RawTensor, or a
// wrapper (such as a batched tensor) that reports its logical shape.
type Tensor interface {
	Shape() Shape
	DType() DataType
}

// storage is the flat element buffer shared by a tensor and all of its views.
// data always holds a []T matching the owning tensors' DataType.
type storage struct {
	data any
	size int
}

func newStorage(dtype DataType, n int) *storage {
	var data any
	switch dtype {
	case Float32:
		data = make([]float32, n)
	case Float64:
		data = make([]float64, n)
	case Int32:
		data = make([]int32, n)
	case Int64:
		data = make([]int64, n)
	case Uint8:
		data = make([]uint8, n)
	case Bool:
		data = make([]bool, n)
	default:
		panic(fmt.Sprintf("unsupported dtype %d", dtype))
	}
	return &storage{data: data, size: n}
}

// RawTensor is a strided view over shared storage.
//
// Element (i0, i1, ...) lives at storage position offset + Σ ik*stride[k]. Views
// produced by Select, Expand, Permute and friends share storage with their source,
// so writes through one are visible through the others.
type RawTensor struct {
	store  *storage
	shape  Shape
	stride []int
	offset int
	dtype  DataType
}

// NewRaw allocates a zero-filled, contiguous tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}
	return &RawTensor{
		store:  newStorage(dtype, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
	}, nil
}

// mustNewRaw is NewRaw for shapes already known to be valid.
func mustNewRaw(shape Shape, dtype DataType) *RawTensor {
	r, err := NewRaw(shape, dtype)
	if err != nil {
		exceptions.Panicf("%v", err)
	}
	return r
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's strides, in elements.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// Offset returns the storage position of the first element.
func (r *RawTensor) Offset() int {
	return r.offset
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Rank returns the number of dimensions.
func (r *RawTensor) Rank() int {
	return len(r.shape)
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// SharesStorage reports whether r and other are views of the same buffer.
func (r *RawTensor) SharesStorage(other *RawTensor) bool {
	return other != nil && r.store == other.store
}

// IsContiguous reports whether the elements are laid out densely in row-major order.
func (r *RawTensor) IsContiguous() bool {
	expected := 1
	for i := len(r.shape) - 1; i >= 0; i-- {
		if r.shape[i] == 1 {
			continue
		}
		if r.stride[i] != expected {
			return false
		}
		expected *= r.shape[i]
	}
	return true
}

// Elements returns the whole storage buffer backing r as []T.
// Positions inside it are given by Offsets; use ToSlice for a logical copy.
// Panics if T does not match the tensor's dtype.
func Elements[T DType](r *RawTensor) []T {
	data, ok := r.store.data.([]T)
	if !ok {
		exceptions.Panicf("tensor dtype is %s, not %s", r.dtype, DataTypeOf[T]())
	}
	return data
}

// ForEachOffset calls fn for every element in row-major logical order with the
// element's linear index and its storage position.
func (r *RawTensor) ForEachOffset(fn func(i, pos int)) {
	n := r.NumElements()
	if n == 0 {
		return
	}
	rank := len(r.shape)
	idx := make([]int, rank)
	pos := r.offset
	for i := 0; i < n; i++ {
		fn(i, pos)
		// Odometer increment, last dimension fastest.
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			pos += r.stride[d]
			if idx[d] < r.shape[d] {
				break
			}
			pos -= idx[d] * r.stride[d]
			idx[d] = 0
		}
	}
}

// Offsets returns the storage positions of all elements in row-major logical order.
func (r *RawTensor) Offsets() []int {
	offsets := make([]int, r.NumElements())
	r.ForEachOffset(func(i, pos int) { offsets[i] = pos })
	return offsets
}

// Clone returns a contiguous deep copy of r.
func (r *RawTensor) Clone() *RawTensor {
	out := mustNewRaw(r.shape, r.dtype)
	copyInto(out, r)
	return out
}

// Contiguous returns r itself if it is already contiguous, otherwise a contiguous copy.
func (r *RawTensor) Contiguous() *RawTensor {
	if r.IsContiguous() {
		return r
	}
	return r.Clone()
}

// CopyFrom writes src into r's storage, broadcasting src to r's shape.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if src.dtype != r.dtype {
		return errors.Errorf("copy: dtype mismatch %s vs %s", src.dtype, r.dtype)
	}
	expanded, err := src.BroadcastTo(r.shape)
	if err != nil {
		return errors.WithMessage(err, "copy")
	}
	copyInto(r, expanded)
	return nil
}

// copyInto copies src element-wise into dst; shapes must already match.
func copyInto(dst, src *RawTensor) {
	switch dst.dtype {
	case Float32:
		copyTyped[float32](dst, src)
	case Float64:
		copyTyped[float64](dst, src)
	case Int32:
		copyTyped[int32](dst, src)
	case Int64:
		copyTyped[int64](dst, src)
	case Uint8:
		copyTyped[uint8](dst, src)
	case Bool:
		copyTyped[bool](dst, src)
	}
}

func copyTyped[T DType](dst, src *RawTensor) {
	d, s := Elements[T](dst), Elements[T](src)
	srcPos := src.Offsets()
	dst.ForEachOffset(func(i, pos int) {
		d[pos] = s[srcPos[i]]
	})
}

// String renders shape, dtype and up to 16 leading elements.
func (r *RawTensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RawTensor%s[%s](", r.shape, r.dtype)
	const limit = 16
	r.ForEachOffset(func(i, pos int) {
		switch {
		case i < limit:
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.formatAt(pos))
		case i == limit:
			sb.WriteString(", ...")
		}
	})
	sb.WriteString(")")
	return sb.String()
}

func (r *RawTensor) formatAt(pos int) string {
	switch data := r.store.data.(type) {
	case []float32:
		return fmt.Sprint(data[pos])
	case []float64:
		return fmt.Sprint(data[pos])
	case []int32:
		return fmt.Sprint(data[pos])
	case []int64:
		return fmt.Sprint(data[pos])
	case []uint8:
		return fmt.Sprint(data[pos])
	case []bool:
		return fmt.Sprint(data[pos])
	}
	return "?"
}
