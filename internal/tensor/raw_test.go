package tensor

import (
	"testing"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// RawTensor Tests

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorZeroElements(t *testing.T) {
	raw, err := NewRaw(Shape{0, 4}, Float32)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if raw.NumElements() != 0 || raw.ByteSize() != 0 {
		t.Errorf("NumElements = %d, ByteSize = %d, want 0", raw.NumElements(), raw.ByteSize())
	}
	if len(raw.AsFloat32()) != 0 {
		t.Error("AsFloat32 on an empty tensor should be empty")
	}
	if !raw.Shape().IsEmpty() {
		t.Error("Shape{0, 4} should be empty")
	}
}

func TestNewRawRejectsNegativeDims(t *testing.T) {
	if _, err := NewRaw(Shape{2, -1}, Float32); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestRawTensorCloneSharesBuffer(t *testing.T) {
	raw, _ := FromSlice([]float64{1, 2, 3}, Shape{3})
	clone := raw.Clone()

	if raw.IsUnique() {
		t.Error("original should share its buffer after Clone")
	}
	clone.AsFloat64()[0] = 9
	if raw.AsFloat64()[0] != 9 {
		t.Error("Clone should share the underlying buffer")
	}

	clone.Release()
	if !raw.IsUnique() {
		t.Error("original should be unique after the clone is released")
	}
}

func TestFromSliceLengthMismatch(t *testing.T) {
	if _, err := FromSlice([]int32{1, 2, 3}, Shape{2, 2}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestFull(t *testing.T) {
	raw, _ := Full(Shape{2, 2}, float16.Fromfloat32(1.5))
	if raw.DType() != Float16 || raw.ByteSize() != 8 {
		t.Fatalf("DType = %s, ByteSize = %d", raw.DType(), raw.ByteSize())
	}
	for i, v := range Data[float16.Float16](raw) {
		if v.Float32() != 1.5 {
			t.Errorf("element %d = %v, want 1.5", i, v.Float32())
		}
	}
}

func TestDataPanicsOnTypeMismatch(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Float32)
	defer func() {
		if recover() == nil {
			t.Error("Data[float64] on a float32 tensor should panic")
		}
	}()
	_ = Data[float64](raw)
}

func TestViewAndBytes(t *testing.T) {
	src := []float32{1, 2, 3}
	b := Bytes(src)
	if len(b) != 12 {
		t.Fatalf("Bytes length = %d, want 12", len(b))
	}
	v := View[float32](b)
	v[1] = 5
	if src[1] != 5 {
		t.Error("View should alias the original slice")
	}
	if Bytes([]float32{}) != nil {
		t.Error("Bytes of an empty slice should be nil")
	}
	if View[float64](make([]byte, 4)) != nil {
		t.Error("View of a short buffer should be nil")
	}
}

func TestShapeComputeStrides(t *testing.T) {
	got := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("strides = %v, want %v", got, want)
			break
		}
	}
}

func TestDataTypeOf(t *testing.T) {
	tests := []struct {
		got  DataType
		want DataType
		size int
	}{
		{DataTypeOf[float32](), Float32, 4},
		{DataTypeOf[float64](), Float64, 8},
		{DataTypeOf[float16.Float16](), Float16, 2},
		{DataTypeOf[bfloat16.BF16](), BFloat16, 2},
		{DataTypeOf[int32](), Int32, 4},
		{DataTypeOf[int64](), Int64, 8},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("DataTypeOf = %s, want %s", tt.got, tt.want)
		}
		if tt.want.Size() != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.want, tt.want.Size(), tt.size)
		}
	}
	if Int32.IsFloat() || !BFloat16.IsFloat() {
		t.Error("IsFloat misclassifies types")
	}
}

func TestFloatConversions(t *testing.T) {
	for _, f := range []float32{0, 1, -2.5, 96} {
		if got := ToFloat32(FromFloat32[float16.Float16](f)); got != f {
			t.Errorf("float16 round trip of %v = %v", f, got)
		}
		if got := ToFloat32(FromFloat32[bfloat16.BF16](f)); got != f {
			t.Errorf("bfloat16 round trip of %v = %v", f, got)
		}
		if got := ToFloat32(FromFloat32[float64](f)); got != f {
			t.Errorf("float64 round trip of %v = %v", f, got)
		}
	}
}
