package engine

import "fmt"

// Algorithm selects the convolution implementation.
type Algorithm int

// Convolution algorithms.
const (
	AlgorithmDirect Algorithm = iota + 1
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	if a == AlgorithmDirect {
		return "convolution_direct"
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// PropKind is the propagation kind of a convolution descriptor.
type PropKind int

// Propagation kinds.
const (
	PropForward PropKind = iota + 1
	PropBackwardData
)

// PaddingKind is how out-of-bounds input positions are filled.
type PaddingKind int

// Padding kinds.
const (
	PaddingZero PaddingKind = iota
)

// String returns the padding kind name.
func (p PaddingKind) String() string {
	if p == PaddingZero {
		return "zero"
	}
	return fmt.Sprintf("padding(%d)", int(p))
}

// convDesc holds the parameters shared by forward and backward descriptors.
// src/dst are diff_src/diff_dst for backward data.
type convDesc struct {
	prop      PropKind
	algorithm Algorithm
	src       MemoryDesc
	weights   MemoryDesc
	dst       MemoryDesc
	strides   []int
	dilations []int // zero-based: 0 means a dense kernel
	padLeft   []int
	padRight  []int
	padding   PaddingKind
}

func newConvDesc(prop PropKind, alg Algorithm, src, weights, dst MemoryDesc,
	strides, dilations, padLeft, padRight []int, padding PaddingKind,
) (convDesc, error) {
	d := convDesc{
		prop:      prop,
		algorithm: alg,
		src:       src,
		weights:   weights,
		dst:       dst,
		strides:   append([]int(nil), strides...),
		dilations: append([]int(nil), dilations...),
		padLeft:   append([]int(nil), padLeft...),
		padRight:  append([]int(nil), padRight...),
		padding:   padding,
	}
	return d, d.validate()
}

func (d *convDesc) validate() error {
	if d.algorithm != AlgorithmDirect {
		return newError(StatusUnimplemented, "algorithm %s is not supported", d.algorithm)
	}
	if d.padding != PaddingZero {
		return newError(StatusUnimplemented, "padding kind %s is not supported", d.padding)
	}
	operands := []struct {
		name string
		md   MemoryDesc
	}{{"src", d.src}, {"weights", d.weights}, {"dst", d.dst}}
	for _, op := range operands {
		name, md := op.name, op.md
		if len(md.Dims) != 4 {
			return newError(StatusUnimplemented, "%s: only 2-D spatial convolutions are supported, got %d dims", name, len(md.Dims))
		}
		if md.DataType != d.src.DataType {
			return newError(StatusInvalidArguments, "%s data type %s differs from src data type %s", name, md.DataType, d.src.DataType)
		}
		if md.Format != FormatAny {
			if err := md.Validate(); err != nil {
				return err
			}
		}
		for i, dim := range md.Dims {
			if dim <= 0 {
				return newError(StatusInvalidArguments, "%s dimension %d must be positive, got %d", name, i, dim)
			}
		}
	}
	if !d.src.DataType.IsFloat() {
		return newError(StatusUnimplemented, "data type %s is not supported", d.src.DataType)
	}
	if md := d.weights; md.Format != FormatAny && !md.Format.IsWeights() {
		return newError(StatusInvalidArguments, "weights cannot use activation format %s", md.Format)
	}
	for _, md := range []MemoryDesc{d.src, d.dst} {
		if md.Format != FormatAny && !md.Format.IsData() {
			return newError(StatusInvalidArguments, "activations cannot use weights format %s", md.Format)
		}
	}
	names := []string{"strides", "dilations", "padding_left", "padding_right"}
	for i, v := range [][]int{d.strides, d.dilations, d.padLeft, d.padRight} {
		if len(v) != 2 {
			return newError(StatusInvalidArguments, "%s must have 2 entries, got %d", names[i], len(v))
		}
	}

	if d.src.Dims[0] != d.dst.Dims[0] {
		return newError(StatusInvalidArguments, "batch mismatch: src %d, dst %d", d.src.Dims[0], d.dst.Dims[0])
	}
	if d.src.Dims[1] != d.weights.Dims[1] {
		return newError(StatusInvalidArguments, "input channels mismatch: src %d, weights %d", d.src.Dims[1], d.weights.Dims[1])
	}
	if d.dst.Dims[1] != d.weights.Dims[0] {
		return newError(StatusInvalidArguments, "output channels mismatch: dst %d, weights %d", d.dst.Dims[1], d.weights.Dims[0])
	}
	for i := 0; i < 2; i++ {
		if d.strides[i] <= 0 {
			return newError(StatusInvalidArguments, "stride %d must be positive, got %d", i, d.strides[i])
		}
		if d.dilations[i] < 0 || d.padLeft[i] < 0 || d.padRight[i] < 0 {
			return newError(StatusInvalidArguments, "negative dilation or padding in spatial dim %d", i)
		}
		in, k, out := d.src.Dims[2+i], d.weights.Dims[2+i], d.dst.Dims[2+i]
		span := in + d.padLeft[i] + d.padRight[i] - ((k-1)*(d.dilations[i]+1) + 1)
		if span < 0 {
			return newError(StatusInvalidArguments, "spatial dim %d: dilated kernel %d exceeds padded input %d",
				i, (k-1)*(d.dilations[i]+1)+1, in+d.padLeft[i]+d.padRight[i])
		}
		if want := span/d.strides[i] + 1; want != out {
			return newError(StatusInvalidArguments, "spatial dim %d: dst size %d, expected %d", i, out, want)
		}
	}
	return nil
}

func (d *convDesc) sameGeometry(o *convDesc) bool {
	return d.algorithm == o.algorithm && d.padding == o.padding &&
		sameDims(d.src.Dims, o.src.Dims) && sameDims(d.weights.Dims, o.weights.Dims) &&
		sameDims(d.dst.Dims, o.dst.Dims) && d.src.DataType == o.src.DataType &&
		sameDims(d.strides, o.strides) && sameDims(d.dilations, o.dilations) &&
		sameDims(d.padLeft, o.padLeft) && sameDims(d.padRight, o.padRight)
}

// ConvForwardDesc describes a forward convolution.
type ConvForwardDesc struct {
	convDesc
}

// NewConvForwardDesc creates a forward convolution descriptor. Dilations
// are zero-based.
func NewConvForwardDesc(prop PropKind, alg Algorithm, src, weights, dst MemoryDesc,
	strides, dilations, padLeft, padRight []int, padding PaddingKind,
) (*ConvForwardDesc, error) {
	if prop != PropForward {
		return nil, newError(StatusInvalidArguments, "forward descriptor requires PropForward")
	}
	d, err := newConvDesc(prop, alg, src, weights, dst, strides, dilations, padLeft, padRight, padding)
	if err != nil {
		return nil, err
	}
	return &ConvForwardDesc{d}, nil
}

// ConvBackwardDataDesc describes a convolution gradient w.r.t. its input.
type ConvBackwardDataDesc struct {
	convDesc
}

// NewConvBackwardDataDesc creates a backward-data descriptor. Dilations are
// zero-based.
func NewConvBackwardDataDesc(alg Algorithm, diffSrc, weights, diffDst MemoryDesc,
	strides, dilations, padLeft, padRight []int, padding PaddingKind,
) (*ConvBackwardDataDesc, error) {
	d, err := newConvDesc(PropBackwardData, alg, diffSrc, weights, diffDst, strides, dilations, padLeft, padRight, padding)
	if err != nil {
		return nil, err
	}
	return &ConvBackwardDataDesc{d}, nil
}

// ConvForwardPrimitiveDesc is a forward descriptor with layouts resolved.
type ConvForwardPrimitiveDesc struct {
	desc    ConvForwardDesc
	engine  *Engine
	src     MemoryDesc
	weights MemoryDesc
	dst     MemoryDesc
}

// NewConvForwardPrimitiveDesc resolves FormatAny operands to the layouts
// eng prefers for this convolution.
func NewConvForwardPrimitiveDesc(d *ConvForwardDesc, eng *Engine) (*ConvForwardPrimitiveDesc, error) {
	if d == nil || eng == nil {
		return nil, newError(StatusInvalidArguments, "forward primitive descriptor requires a descriptor and an engine")
	}
	return &ConvForwardPrimitiveDesc{
		desc:    *d,
		engine:  eng,
		src:     eng.resolveData(d.src),
		weights: eng.resolveWeights(d.weights),
		dst:     eng.resolveData(d.dst),
	}, nil
}

// SrcDesc returns the resolved source layout.
func (pd *ConvForwardPrimitiveDesc) SrcDesc() MemoryDesc { return pd.src }

// WeightsDesc returns the resolved weights layout.
func (pd *ConvForwardPrimitiveDesc) WeightsDesc() MemoryDesc { return pd.weights }

// DstDesc returns the resolved destination layout.
func (pd *ConvForwardPrimitiveDesc) DstDesc() MemoryDesc { return pd.dst }

// ConvBackwardDataPrimitiveDesc is a backward-data descriptor with layouts
// resolved relative to a forward hint.
type ConvBackwardDataPrimitiveDesc struct {
	desc    ConvBackwardDataDesc
	engine  *Engine
	diffSrc MemoryDesc
	weights MemoryDesc
	diffDst MemoryDesc
}

// NewConvBackwardDataPrimitiveDesc compiles d on eng. The forward hint must
// describe the same convolution; FormatAny operands take the hint's layouts
// so the backward pass consumes what the forward pass produces.
func NewConvBackwardDataPrimitiveDesc(d *ConvBackwardDataDesc, eng *Engine, hint *ConvForwardPrimitiveDesc) (*ConvBackwardDataPrimitiveDesc, error) {
	if d == nil || eng == nil {
		return nil, newError(StatusInvalidArguments, "backward data primitive descriptor requires a descriptor and an engine")
	}
	if hint == nil {
		return nil, newError(StatusInvalidArguments, "backward data primitive descriptor requires a forward hint")
	}
	if !d.sameGeometry(&hint.desc.convDesc) {
		return nil, newError(StatusInvalidArguments, "forward hint does not match the backward data descriptor")
	}
	pick := func(want, hinted MemoryDesc) MemoryDesc {
		if want.Format == FormatAny {
			return hinted
		}
		return want
	}
	return &ConvBackwardDataPrimitiveDesc{
		desc:    *d,
		engine:  eng,
		diffSrc: pick(d.src, hint.src),
		weights: pick(d.weights, hint.weights),
		diffDst: pick(d.dst, hint.dst),
	}, nil
}

// DiffSrcDesc returns the layout of the computed input gradient.
func (pd *ConvBackwardDataPrimitiveDesc) DiffSrcDesc() MemoryDesc { return pd.diffSrc }

// WeightsDesc returns the layout the primitive reads weights in.
func (pd *ConvBackwardDataPrimitiveDesc) WeightsDesc() MemoryDesc { return pd.weights }

// DiffDstDesc returns the layout the primitive reads the output gradient in.
func (pd *ConvBackwardDataPrimitiveDesc) DiffDstDesc() MemoryDesc { return pd.diffDst }

// Engine returns the engine the descriptor was compiled for.
func (pd *ConvBackwardDataPrimitiveDesc) Engine() *Engine { return pd.engine }
