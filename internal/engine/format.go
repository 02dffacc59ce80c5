package engine

import "fmt"

// Format names a physical memory layout.
//
// Logical dimensions are always given in engine order: [N, C, H, W] for
// activations and [O, I, H, W] for weights. The format decides how those
// logical coordinates map to a position in the buffer.
type Format int

// Memory formats.
const (
	FormatUndef Format = iota
	// FormatAny lets a primitive descriptor choose the layout.
	FormatAny
	FormatNCHW
	FormatNHWC
	// FormatNChwXc blocks channels by the descriptor's block size.
	FormatNChwXc
	FormatOIHW
	FormatHWIO
	// FormatOIhwXiXo blocks both input and output channels.
	FormatOIhwXiXo
)

// String returns the conventional short name of the format.
func (f Format) String() string {
	switch f {
	case FormatUndef:
		return "undef"
	case FormatAny:
		return "any"
	case FormatNCHW:
		return "nchw"
	case FormatNHWC:
		return "nhwc"
	case FormatNChwXc:
		return "nChwXc"
	case FormatOIHW:
		return "oihw"
	case FormatHWIO:
		return "hwio"
	case FormatOIhwXiXo:
		return "OIhwXiXo"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// IsBlocked reports whether the format pads channels to a block size.
func (f Format) IsBlocked() bool {
	return f == FormatNChwXc || f == FormatOIhwXiXo
}

// IsData reports whether the format describes activations.
func (f Format) IsData() bool {
	return f == FormatNCHW || f == FormatNHWC || f == FormatNChwXc
}

// IsWeights reports whether the format describes convolution weights.
func (f Format) IsWeights() bool {
	return f == FormatOIHW || f == FormatHWIO || f == FormatOIhwXiXo
}
