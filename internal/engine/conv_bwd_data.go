package engine

import (
	"github.com/born-ml/convgrad/internal/tensor"
	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// ConvBackwardData is the compiled backward-data convolution primitive.
// It reads the output gradient and the weights and overwrites the input
// gradient.
type ConvBackwardData struct {
	pd      *ConvBackwardDataPrimitiveDesc
	diffDst *Memory
	weights *Memory
	diffSrc *Memory
}

// NewConvBackwardData creates the primitive over three memory objects whose
// descriptors must equal the ones chosen by pd. The memories may hold
// DummyData until execution.
func NewConvBackwardData(pd *ConvBackwardDataPrimitiveDesc, diffDst, weights, diffSrc *Memory) (*ConvBackwardData, error) {
	if pd == nil {
		return nil, newError(StatusInvalidArguments, "backward data primitive requires a primitive descriptor")
	}
	checks := []struct {
		role string
		mem  *Memory
		want MemoryDesc
	}{
		{"diff_dst", diffDst, pd.diffDst},
		{"weights", weights, pd.weights},
		{"diff_src", diffSrc, pd.diffSrc},
	}
	for _, c := range checks {
		if c.mem == nil {
			return nil, newError(StatusInvalidArguments, "%s memory is nil", c.role)
		}
		if !c.mem.Desc().Equal(c.want) {
			return nil, newError(StatusInvalidArguments, "%s memory %s does not match primitive layout %s",
				c.role, c.mem.Desc(), c.want)
		}
	}
	return &ConvBackwardData{pd: pd, diffDst: diffDst, weights: weights, diffSrc: diffSrc}, nil
}

// Kind implements Primitive.
func (p *ConvBackwardData) Kind() string {
	return "convolution_backward_data"
}

// Execute implements Primitive.
func (p *ConvBackwardData) Execute() error {
	if p.diffDst.IsDummy() || p.weights.IsDummy() || p.diffSrc.IsDummy() {
		return newError(StatusNotBound, "convolution_backward_data executed without bound buffers")
	}

	g := newBwdGeometry(p.pd)
	src, wei, dst := p.diffSrc.DataHandle(), p.weights.DataHandle(), p.diffDst.DataHandle()

	switch p.pd.diffSrc.DataType {
	case tensor.Float32:
		convBwdDataDirect(g, tensor.View[float32](src), tensor.View[float32](wei), tensor.View[float32](dst))
	case tensor.Float64:
		convBwdDataDirect(g, tensor.View[float64](src), tensor.View[float64](wei), tensor.View[float64](dst))
	case tensor.Float16:
		convBwdDataWidened(g, tensor.View[float16.Float16](src), tensor.View[float16.Float16](wei), tensor.View[float16.Float16](dst))
	case tensor.BFloat16:
		convBwdDataWidened(g, tensor.View[bfloat16.BF16](src), tensor.View[bfloat16.BF16](wei), tensor.View[bfloat16.BF16](dst))
	default:
		return newError(StatusUnimplemented, "convolution_backward_data: data type %s", p.pd.diffSrc.DataType)
	}
	return nil
}

// bwdGeometry caches the sizes the kernel loops over.
type bwdGeometry struct {
	engine         *Engine
	src, wei, dst  MemoryDesc
	n, ic, ih, iw  int
	oc, kh, kw     int
	oh, ow         int
	sh, sw         int
	dh, dw         int // distance between kernel taps: dilation + 1
	padTop, padLft int
}

func newBwdGeometry(pd *ConvBackwardDataPrimitiveDesc) *bwdGeometry {
	d := &pd.desc
	return &bwdGeometry{
		engine: pd.engine,
		src:    pd.diffSrc,
		wei:    pd.weights,
		dst:    pd.diffDst,
		n:      d.src.Dims[0],
		ic:     d.src.Dims[1],
		ih:     d.src.Dims[2],
		iw:     d.src.Dims[3],
		oc:     d.weights.Dims[0],
		kh:     d.weights.Dims[2],
		kw:     d.weights.Dims[3],
		oh:     d.dst.Dims[2],
		ow:     d.dst.Dims[3],
		sh:     d.strides[0],
		sw:     d.strides[1],
		dh:     d.dilations[0] + 1,
		dw:     d.dilations[1] + 1,
		padTop: d.padLeft[0],
		padLft: d.padLeft[1],
	}
}

// convBwdDataDirect computes the input gradient with the direct algorithm.
//
// Each input position (n, ic, ih, iw) gathers every output-gradient
// position whose receptive field covered it:
//
//	diff_src[n, ic, ih, iw] = Σ diff_dst[n, oc, oh, ow] * weights[oc, ic, kh, kw]
//	where ih = oh*sh - padTop + kh*dh and iw = ow*sw - padLeft + kw*dw
//
// Gathering (rather than scattering like a transposed convolution) keeps
// every (n, ic) plane independent, so planes run in parallel without locks.
//
//nolint:gocognit // High complexity inherent to convolution backprop
func convBwdDataDirect[T float32 | float64](g *bwdGeometry, diffSrc, weights, diffDst []T) {
	// Blocked layouts pad channels; padding lanes must stay zero.
	clear(diffSrc[:g.src.Elements()])

	forPlanes(g.engine, g.n, g.ic, func(n, ic int) {
		for ih := 0; ih < g.ih; ih++ {
			for iw := 0; iw < g.iw; iw++ {
				var sum T
				for oc := 0; oc < g.oc; oc++ {
					for kh := 0; kh < g.kh; kh++ {
						hs := ih + g.padTop - kh*g.dh
						if hs < 0 || hs%g.sh != 0 {
							continue
						}
						oh := hs / g.sh
						if oh >= g.oh {
							continue
						}
						for kw := 0; kw < g.kw; kw++ {
							ws := iw + g.padLft - kw*g.dw
							if ws < 0 || ws%g.sw != 0 {
								continue
							}
							ow := ws / g.sw
							if ow >= g.ow {
								continue
							}
							sum += diffDst[g.dst.offset(n, oc, oh, ow)] * weights[g.wei.offset(oc, ic, kh, kw)]
						}
					}
				}
				diffSrc[g.src.offset(n, ic, ih, iw)] = sum
			}
		}
	})
}

// convBwdDataWidened runs the float32 kernel for half-precision storage
// types: operands are widened in their physical layout, the result is
// narrowed back.
func convBwdDataWidened[T float16.Float16 | bfloat16.BF16](g *bwdGeometry, diffSrc, weights, diffDst []T) {
	widen := func(in []T, n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = tensor.ToFloat32(in[i])
		}
		return out
	}
	src := make([]float32, g.src.Elements())
	convBwdDataDirect(g, src, widen(weights, g.wei.Elements()), widen(diffDst, g.dst.Elements()))
	for i, v := range src {
		diffSrc[i] = tensor.FromFloat32[T](v)
	}
}
