package ops

import (
	"github.com/born-ml/convgrad/internal/tensor"
)

// spatialDim holds the sizes of one spatial dimension of a convolution.
type spatialDim struct {
	InputSize  int
	FilterSize int
	OutputSize int
	Stride     int
	Dilation   int // one-based
	PadBefore  int
	PadAfter   int
}

// convBackpropDims are the dimensions of a 2-D convolution gradient.
type convBackpropDims struct {
	Batch    int
	InDepth  int
	OutDepth int
	Spatial  [2]spatialDim
}

// getWindowedOutputSizeVerbose computes the output size of one windowed
// dimension and the padding the policy implies.
func getWindowedOutputSizeVerbose(op string, inputSize, filterSize, dilation, stride int,
	padding Padding, explicitBefore, explicitAfter int,
) (outputSize, padBefore, padAfter int, err error) {
	if stride <= 0 {
		return 0, 0, 0, invalidArgument(op, "Stride must be > 0, but got %d", stride)
	}
	if dilation < 1 {
		return 0, 0, 0, invalidArgument(op, "Dilation rate must be >= 1, but got %d", dilation)
	}

	effectiveFilterSize := (filterSize-1)*dilation + 1
	switch padding {
	case Valid:
		outputSize = (inputSize - effectiveFilterSize + stride) / stride
	case Same:
		outputSize = (inputSize + stride - 1) / stride
		padNeeded := max(0, (outputSize-1)*stride+effectiveFilterSize-inputSize)
		padBefore = padNeeded / 2
		padAfter = padNeeded - padBefore
	case Explicit:
		padBefore, padAfter = explicitBefore, explicitAfter
		outputSize = (inputSize + padBefore + padAfter - effectiveFilterSize + stride) / stride
	default:
		return 0, 0, 0, invalidArgument(op, "Invalid padding %s", padding)
	}
	if outputSize < 0 {
		return 0, 0, 0, invalidArgument(op,
			"Computed output size would be negative: %d [input_size: %d, effective_filter_size: %d, stride: %d]",
			outputSize, inputSize, effectiveFilterSize, stride)
	}
	return outputSize, padBefore, padAfter, nil
}

// convBackpropComputeDimensions checks that input, filter and out_backprop
// shapes describe one convolution and returns its dimensions. Filters are
// HWIO; activations are in the attribute data format.
func convBackpropComputeDimensions(op string, input, filter, outBackprop tensor.Shape, attrs *Attrs) (*convBackpropDims, error) {
	if len(input) != 4 {
		return nil, invalidArgument(op, "input must be 4-dimensional, got %v", input)
	}
	if len(filter) != 4 {
		return nil, invalidArgument(op, "filter must be 4-dimensional, got %v", filter)
	}
	if len(outBackprop) != 4 {
		return nil, invalidArgument(op, "out_backprop must be 4-dimensional, got %v", outBackprop)
	}

	n, c, h, w := attrs.DataFormat.index()
	dims := &convBackpropDims{
		Batch:    input[n],
		InDepth:  input[c],
		OutDepth: outBackprop[c],
	}
	if dims.Batch != outBackprop[n] {
		return nil, invalidArgument(op, "input and out_backprop must have the same batch size, input batch: %d outbackprop batch: %d",
			dims.Batch, outBackprop[n])
	}
	if dims.InDepth != filter[2] {
		return nil, invalidArgument(op, "input and filter must have the same depth: %d vs %d", dims.InDepth, filter[2])
	}
	if dims.OutDepth != filter[3] {
		return nil, invalidArgument(op, "filter and out_backprop must have the same out_depth: %d vs %d", filter[3], dims.OutDepth)
	}

	for i, idx := range []int{h, w} {
		var before, after int
		if attrs.Padding == Explicit {
			before, after = attrs.ExplicitPaddings[2*idx], attrs.ExplicitPaddings[2*idx+1]
		}
		d := spatialDim{
			InputSize:  input[idx],
			FilterSize: filter[i],
			Stride:     attrs.Strides[idx],
			Dilation:   attrs.Dilations[idx],
		}
		out, pb, pa, err := getWindowedOutputSizeVerbose(op, d.InputSize, d.FilterSize, d.Dilation, d.Stride,
			attrs.Padding, before, after)
		if err != nil {
			return nil, err
		}
		if out != outBackprop[idx] {
			return nil, invalidArgument(op,
				"Size of out_backprop doesn't match computed: actual = %d, computed = %d spatial_dim: %d input: %d filter: %d output: %d stride: %d dilation: %d",
				outBackprop[idx], out, idx, d.InputSize, d.FilterSize, outBackprop[idx], d.Stride, d.Dilation)
		}
		d.OutputSize, d.PadBefore, d.PadAfter = out, pb, pa
		dims.Spatial[i] = d
	}
	return dims, nil
}

// OutBackpropShape returns the shape of the forward convolution output,
// which is the shape out_backprop must have for input and filter.
func OutBackpropShape(attrs Attrs, input, filter tensor.Shape) (tensor.Shape, error) {
	const op = "OutBackpropShape"
	a := attrs.clone()
	if err := a.validate(op); err != nil {
		return nil, err
	}
	if len(input) != 4 || len(filter) != 4 {
		return nil, invalidArgument(op, "input and filter must be 4-dimensional, got %v and %v", input, filter)
	}
	n, c, h, w := a.DataFormat.index()
	if input[c] != filter[2] {
		return nil, invalidArgument(op, "input and filter must have the same depth: %d vs %d", input[c], filter[2])
	}

	out := make(tensor.Shape, 4)
	out[n], out[c] = input[n], filter[3]
	for i, idx := range []int{h, w} {
		var before, after int
		if a.Padding == Explicit {
			before, after = a.ExplicitPaddings[2*idx], a.ExplicitPaddings[2*idx+1]
		}
		size, _, _, err := getWindowedOutputSizeVerbose(op, input[idx], filter[i], a.Dilations[idx], a.Strides[idx],
			a.Padding, before, after)
		if err != nil {
			return nil, err
		}
		out[idx] = size
	}
	return out, nil
}
