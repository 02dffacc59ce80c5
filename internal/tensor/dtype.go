// Package tensor provides the tensor storage types shared by the engine and the operators.
package tensor

import (
	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DType is a constraint for every element type a RawTensor can hold.
type DType interface {
	Float | int32 | int64
}

// Float is a constraint for the floating-point element types the
// convolution kernels accept. Half-precision types are storage formats:
// kernels widen them to float32 for arithmetic.
type Float interface {
	float32 | float64 | float16.Float16 | bfloat16.BF16
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Float16
	BFloat16
	Int32
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16, BFloat16:
		return 2
	default:
		panic("unknown data type")
	}
}

// IsFloat reports whether the data type is a floating-point type.
func (dt DataType) IsFloat() bool {
	switch dt {
	case Float32, Float64, Float16, BFloat16:
		return true
	default:
		return false
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// DataTypeOf returns the runtime DataType of the type parameter T.
func DataTypeOf[T DType]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case float16.Float16:
		return Float16
	case bfloat16.BF16:
		return BFloat16
	case int32:
		return Int32
	case int64:
		return Int64
	default:
		panic("unsupported type")
	}
}

// ToFloat32 widens a single element of any Float type to float32.
func ToFloat32[T Float](v T) float32 {
	switch x := any(v).(type) {
	case float32:
		return x
	case float64:
		return float32(x)
	case float16.Float16:
		return x.Float32()
	case bfloat16.BF16:
		return bfloat16.ToFloat32(x)
	default:
		panic("unsupported type")
	}
}

// FromFloat32 narrows a float32 to any Float type.
func FromFloat32[T Float](f float32) T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(f).(T)
	case float64:
		return any(float64(f)).(T)
	case float16.Float16:
		return any(float16.Fromfloat32(f)).(T)
	case bfloat16.BF16:
		return any(bfloat16.FromFloat32(f)).(T)
	default:
		panic("unsupported type")
	}
}
