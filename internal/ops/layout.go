package ops

import (
	"fmt"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/tensor"
)

// DataFormat is the channel ordering of canonical activation tensors.
type DataFormat int

// Data formats.
const (
	NHWC DataFormat = iota
	NCHW
)

// String returns the format name.
func (f DataFormat) String() string {
	switch f {
	case NHWC:
		return "NHWC"
	case NCHW:
		return "NCHW"
	default:
		return fmt.Sprintf("DataFormat(%d)", int(f))
	}
}

// ParseDataFormat parses "NHWC" or "NCHW".
func ParseDataFormat(s string) (DataFormat, error) {
	switch s {
	case "NHWC":
		return NHWC, nil
	case "NCHW":
		return NCHW, nil
	default:
		return 0, invalidArgument("ParseDataFormat", "Invalid data format %q", s)
	}
}

// engineFormat is the engine layout of a canonical tensor in this format.
func (f DataFormat) engineFormat() engine.Format {
	if f == NCHW {
		return engine.FormatNCHW
	}
	return engine.FormatNHWC
}

// index positions of the batch, channel and spatial dims in canonical shapes.
func (f DataFormat) index() (n, c, h, w int) {
	if f == NCHW {
		return 0, 1, 2, 3
	}
	return 0, 3, 1, 2
}

// LayoutMeta describes how a tensor's bytes are arranged.
//
// A canonical tensor (Native false) is stored in its own shape: NHWC or
// NCHW per DataFormat for activations, HWIO for filters. A native tensor
// is stored flat in the engine layout Desc; Shape then carries its
// canonical logical shape.
type LayoutMeta struct {
	Native     bool
	Desc       engine.MemoryDesc
	Shape      tensor.Shape
	DataFormat DataFormat
}

// Input is one operator operand.
type Input struct {
	Tensor *tensor.RawTensor
	Layout LayoutMeta
}

// Canonical wraps a tensor stored in canonical layout.
func Canonical(t *tensor.RawTensor) Input {
	return Input{Tensor: t, Layout: LayoutMeta{Shape: t.Shape()}}
}

// Output is an operator result.
type Output struct {
	Tensor *tensor.RawTensor
	Layout LayoutMeta
}

// AsInput feeds the output to a downstream operator without converting it.
func (o *Output) AsInput() Input {
	return Input{Tensor: o.Tensor, Layout: o.Layout}
}

// logicalShape returns the canonical shape of in.
func (in Input) logicalShape() tensor.Shape {
	if in.Layout.Native {
		return in.Layout.Shape
	}
	return in.Tensor.Shape()
}
