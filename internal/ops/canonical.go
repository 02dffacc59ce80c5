package ops

import (
	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/tensor"
)

// ToCanonical returns out as a tensor in its canonical layout, converting
// it with eng when it carries a native layout. Canonical outputs are
// returned as is.
func ToCanonical[T tensor.Float](eng *engine.Engine, out *Output) (*tensor.RawTensor, error) {
	const op = "ToCanonical"
	if out == nil || out.Tensor == nil {
		return nil, invalidArgument(op, "output is nil")
	}
	if !out.Layout.Native {
		return out.Tensor, nil
	}

	shape := out.Layout.Shape
	if len(shape) != 4 {
		return nil, invalidArgument(op, "native output must be 4-dimensional, got %v", shape)
	}
	n, c, h, w := out.Layout.DataFormat.index()
	dims := []int{shape[n], shape[c], shape[h], shape[w]}
	dst := engine.NewMemoryDesc(dims, out.Layout.Desc.DataType, out.Layout.DataFormat.engineFormat())

	canonical, err := tensor.NewRaw(shape, tensor.DataTypeOf[T]())
	if err != nil {
		return nil, invalidArgument(op, "%v", err)
	}
	if err := eng.Reorder(out.Layout.Desc, out.Tensor.Bytes(), dst, canonical.Bytes()); err != nil {
		return nil, aborted(op, err)
	}
	return canonical, nil
}
