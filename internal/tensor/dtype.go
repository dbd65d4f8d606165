// Package tensor provides the array values the vmap runtime computes on: a strided
// RawTensor whose views share storage, plus the shape and dtype helpers around it.
package tensor

// DType is a constraint for the Go element types a RawTensor can hold.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// Number is the subset of DType that arithmetic kernels accept.
type Number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// IsNumeric reports whether arithmetic kernels are defined for dt.
func (dt DataType) IsNumeric() bool {
	return dt == Float32 || dt == Float64 || dt == Int32 || dt == Int64
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// DataTypeOf returns the DataType matching the Go type T.
func DataTypeOf[T DType]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
