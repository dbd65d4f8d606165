package tensor

import "github.com/pkg/errors"

// Stack joins equally shaped tensors along a new leading dimension.
//
//	Stack([a, b, c]) with a, b, c of shape S → shape (3,) + S, element i == ts[i]
func Stack(ts []*RawTensor) (*RawTensor, error) {
	if len(ts) == 0 {
		return nil, errors.New("stack: expects a non-empty list of tensors")
	}
	first := ts[0]
	for i, t := range ts {
		if t == nil {
			return nil, errors.Errorf("stack: tensor %d is undefined", i)
		}
		if !t.Shape().Equal(first.Shape()) {
			return nil, errors.Errorf("stack: expects each tensor to be equal size, but got %v at entry 0 and %v at entry %d",
				first.Shape(), t.Shape(), i)
		}
		if t.DType() != first.DType() {
			return nil, errors.Errorf("stack: expects each tensor to have dtype %s, but got %s at entry %d",
				first.DType(), t.DType(), i)
		}
	}

	outShape := append(Shape{len(ts)}, first.Shape()...)
	out, err := NewRaw(outShape, first.DType())
	if err != nil {
		return nil, err
	}
	for i, t := range ts {
		copyInto(out.Select(0, i), t)
	}
	return out, nil
}
