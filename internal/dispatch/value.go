package dispatch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/tensor"
)

// Kind tags the payload of a Value.
type Kind uint8

// Value kinds.
const (
	KindNone Kind = iota
	KindTensor
	KindTensorList
	KindInt
	KindIntList
	KindFloat
	KindBool
	KindString
)

// String returns the schema spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindTensor:
		return "Tensor"
	case KindTensorList:
		return "Tensor[]"
	case KindInt:
		return "int"
	case KindIntList:
		return "int[]"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "str"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed operator argument or return value.
//
// A Tensor value may be undefined (holds no tensor): kernels use it for absent
// optional inputs and for "no result", e.g. a missing gradient.
type Value struct {
	kind    Kind
	tensor  tensor.Tensor
	tensors []tensor.Tensor
	i       int64
	ints    []int64
	f       float64
	b       bool
	s       string
}

// None returns the None value.
func None() Value { return Value{kind: KindNone} }

// TensorValue wraps t; a nil t gives an undefined tensor.
func TensorValue(t tensor.Tensor) Value {
	if raw, ok := t.(*tensor.RawTensor); ok && raw == nil {
		t = nil
	}
	return Value{kind: KindTensor, tensor: t}
}

// Undefined returns an undefined tensor value.
func Undefined() Value { return Value{kind: KindTensor} }

// TensorList wraps a list of tensors.
func TensorList(ts ...tensor.Tensor) Value {
	return Value{kind: KindTensorList, tensors: ts}
}

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// IntList wraps a list of integers.
func IntList(is ...int64) Value { return Value{kind: KindIntList, ints: is} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsTensor reports whether v is a (possibly undefined) tensor.
func (v Value) IsTensor() bool { return v.kind == KindTensor }

// IsDefined reports whether v is a tensor value holding a tensor.
func (v Value) IsDefined() bool { return v.kind == KindTensor && v.tensor != nil }

// IsNone reports whether v is None.
func (v Value) IsNone() bool { return v.kind == KindNone }

// ToTensor returns the tensor payload; nil for an undefined tensor.
// Panics if v is not a tensor value.
func (v Value) ToTensor() tensor.Tensor {
	v.expect(KindTensor)
	return v.tensor
}

// ToTensorList returns the tensor list payload.
func (v Value) ToTensorList() []tensor.Tensor {
	v.expect(KindTensorList)
	return v.tensors
}

// ToInt returns the integer payload.
func (v Value) ToInt() int64 {
	v.expect(KindInt)
	return v.i
}

// ToIntList returns the integer list payload.
func (v Value) ToIntList() []int64 {
	v.expect(KindIntList)
	return v.ints
}

// ToFloat returns the float payload; integers are widened.
func (v Value) ToFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	v.expect(KindFloat)
	return v.f
}

// ToBool returns the bool payload.
func (v Value) ToBool() bool {
	v.expect(KindBool)
	return v.b
}

// ToString returns the string payload.
func (v Value) ToString() string {
	v.expect(KindString)
	return v.s
}

func (v Value) expect(k Kind) {
	if v.kind != k {
		panic(errors.Errorf("dispatch: expected %s value, got %s", k, v.kind))
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindTensor:
		if v.tensor == nil {
			return "Tensor(undefined)"
		}
		return fmt.Sprintf("Tensor%s", v.tensor.Shape())
	case KindTensorList:
		parts := make([]string, len(v.tensors))
		for i, t := range v.tensors {
			parts[i] = TensorValue(t).String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindInt:
		return fmt.Sprint(v.i)
	case KindIntList:
		return fmt.Sprint(v.ints)
	case KindFloat:
		return fmt.Sprint(v.f)
	case KindBool:
		return fmt.Sprint(v.b)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	}
	return "?"
}
