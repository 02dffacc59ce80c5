// Package ops implements operators on top of the convgrad plan cache.
package ops

import (
	"slices"

	"github.com/born-ml/convgrad/internal/convgrad"
	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/logutil"
	"github.com/born-ml/convgrad/internal/tensor"
)

const conv2DBackpropInputOp = "Conv2DBackpropInput"

// Option configures an operator.
type Option func(*options)

type options struct {
	scratch *convgrad.ScratchPool
}

// WithScratchPool sets the pool layout conversions draw buffers from.
func WithScratchPool(p *convgrad.ScratchPool) Option {
	return func(o *options) {
		o.scratch = p
	}
}

// Conv2DBackpropInput computes the gradient of a 2-D convolution with
// respect to its input. It is safe for concurrent use; plans are shared
// through the registry.
type Conv2DBackpropInput[T tensor.Float] struct {
	attrs    Attrs
	registry *convgrad.Registry[T]
	scratch  *convgrad.ScratchPool
}

// NewConv2DBackpropInput validates attrs and binds the operator to registry.
func NewConv2DBackpropInput[T tensor.Float](attrs Attrs, registry *convgrad.Registry[T], opts ...Option) (*Conv2DBackpropInput[T], error) {
	if registry == nil {
		return nil, invalidArgument(conv2DBackpropInputOp, "registry is nil")
	}
	a := attrs.clone()
	if err := a.validate(conv2DBackpropInputOp); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scratch == nil {
		o.scratch = convgrad.DefaultScratchPool()
	}
	return &Conv2DBackpropInput[T]{attrs: a, registry: registry, scratch: o.scratch}, nil
}

// Attrs returns the operator attributes, with defaults applied.
func (op *Conv2DBackpropInput[T]) Attrs() Attrs {
	return op.attrs.clone()
}

// Compute returns the input gradient for the convolution whose input has
// shape inputSizes, given its filter and the gradient of its output.
//
// inputSizes is a canonical 1-D int32 or int64 tensor. filter and
// outBackprop may be canonical or carry a native layout from a previous
// operator. The result is native unless an operand has no elements, in
// which case it is a canonical zero tensor.
func (op *Conv2DBackpropInput[T]) Compute(inputSizes, filter, outBackprop Input) (*Output, error) {
	dt := tensor.DataTypeOf[T]()

	inputShape, err := shapeFromTensor(inputSizes)
	if err != nil {
		return nil, err
	}
	for _, in := range []struct {
		name string
		in   Input
	}{{"filter", filter}, {"out_backprop", outBackprop}} {
		if in.in.Tensor == nil {
			return nil, invalidArgument(conv2DBackpropInputOp, "%s is nil", in.name)
		}
		if in.in.Tensor.DType() != dt {
			return nil, invalidArgument(conv2DBackpropInputOp, "%s has type %s, expected %s", in.name, in.in.Tensor.DType(), dt)
		}
		if len(in.in.logicalShape()) != 4 {
			return nil, invalidArgument(conv2DBackpropInputOp, "%s must be 4-dimensional, got %v", in.name, in.in.logicalShape())
		}
	}
	filterShape, diffDstShape := filter.logicalShape(), outBackprop.logicalShape()

	if inputShape.IsEmpty() || filterShape.IsEmpty() || diffDstShape.IsEmpty() {
		out, err := tensor.NewRaw(inputShape, dt)
		if err != nil {
			return nil, invalidArgument(conv2DBackpropInputOp, "%v", err)
		}
		return &Output{Tensor: out, Layout: LayoutMeta{Shape: inputShape.Clone(), DataFormat: op.attrs.DataFormat}}, nil
	}

	dims, err := convBackpropComputeDimensions(conv2DBackpropInputOp, inputShape, filterShape, diffDstShape, &op.attrs)
	if err != nil {
		return nil, err
	}
	g := newEngineGeometry(dims, filterShape)

	prim, err := op.registry.GetOrCreate(g.params())
	if err != nil {
		return nil, aborted(conv2DBackpropInputOp, err)
	}

	out, err := tensor.NewRaw(tensor.Shape{prim.DiffSrcDesc().Elements()}, dt)
	if err != nil {
		return nil, aborted(conv2DBackpropInputOp, err)
	}

	filterDesc, err := operandDesc(filter, g.filter, engine.FormatHWIO, dt)
	if err != nil {
		return nil, err
	}
	diffDstDesc, err := operandDesc(outBackprop, g.diffDst, op.attrs.DataFormat.engineFormat(), dt)
	if err != nil {
		return nil, err
	}

	eng := op.registry.Engine()
	filterOp, err := convgrad.Negotiate(eng, filterDesc, prim.FilterDesc(), tensor.Data[T](filter.Tensor), op.scratch)
	if err != nil {
		return nil, aborted(conv2DBackpropInputOp, err)
	}
	defer filterOp.Release()
	diffDstOp, err := convgrad.Negotiate(eng, diffDstDesc, prim.DiffDstDesc(), tensor.Data[T](outBackprop.Tensor), op.scratch)
	if err != nil {
		return nil, aborted(conv2DBackpropInputOp, err)
	}
	defer diffDstOp.Release()

	logutil.Trace("conv2d backprop input",
		"plan", prim.ID(),
		"filter_reordered", filterOp.Reordered(),
		"out_backprop_reordered", diffDstOp.Reordered())

	if err := prim.Execute(tensor.Data[T](out), filterOp.Data(), diffDstOp.Data()); err != nil {
		return nil, aborted(conv2DBackpropInputOp, err)
	}

	return &Output{
		Tensor: out,
		Layout: LayoutMeta{
			Native:     true,
			Desc:       prim.DiffSrcDesc(),
			Shape:      inputShape.Clone(),
			DataFormat: op.attrs.DataFormat,
		},
	}, nil
}

// shapeFromTensor reads a shape vector.
func shapeFromTensor(in Input) (tensor.Shape, error) {
	t := in.Tensor
	if t == nil {
		return nil, invalidArgument(conv2DBackpropInputOp, "input_sizes is nil")
	}
	if in.Layout.Native {
		return nil, invalidArgument(conv2DBackpropInputOp, "input_sizes cannot carry a native layout")
	}
	if len(t.Shape()) != 1 {
		return nil, invalidArgument(conv2DBackpropInputOp, "input_sizes must be 1-dimensional, got %v", t.Shape())
	}

	var shape tensor.Shape
	switch t.DType() {
	case tensor.Int32:
		for _, v := range t.AsInt32() {
			shape = append(shape, int(v))
		}
	case tensor.Int64:
		for _, v := range t.AsInt64() {
			shape = append(shape, int(v))
		}
	default:
		return nil, invalidArgument(conv2DBackpropInputOp, "input_sizes must be int32 or int64, got %s", t.DType())
	}
	if len(shape) != 4 {
		return nil, invalidArgument(conv2DBackpropInputOp, "input_sizes must have 4 elements, got %d", len(shape))
	}
	if err := shape.Validate(); err != nil {
		return nil, invalidArgument(conv2DBackpropInputOp, "input_sizes: %v", err)
	}
	return shape, nil
}

// operandDesc returns the layout in's bytes are in. Native layouts must
// describe the same logical tensor the shapes imply.
func operandDesc(in Input, dims []int, canonical engine.Format, dt tensor.DataType) (engine.MemoryDesc, error) {
	if !in.Layout.Native {
		return engine.NewMemoryDesc(dims, dt, canonical), nil
	}
	d := in.Layout.Desc
	if d.DataType != dt || !slices.Equal(d.Dims, dims) {
		return engine.MemoryDesc{}, invalidArgument(conv2DBackpropInputOp,
			"native layout %s does not describe a %s tensor with dims %v", d, dt, dims)
	}
	return d, nil
}

// engineGeometry is a convolution in engine order with zero-based
// dilations.
type engineGeometry struct {
	diffSrc, filter, diffDst []int
	strides, dilations       []int
	padLeft, padRight        []int
}

func newEngineGeometry(d *convBackpropDims, filter tensor.Shape) *engineGeometry {
	h, w := d.Spatial[0], d.Spatial[1]
	return &engineGeometry{
		diffSrc: []int{d.Batch, d.InDepth, h.InputSize, w.InputSize},
		filter:  []int{d.OutDepth, d.InDepth, filter[0], filter[1]},
		diffDst: []int{d.Batch, d.OutDepth, h.OutputSize, w.OutputSize},
		strides: []int{h.Stride, w.Stride},
		// The engine counts skipped taps: 0 is a dense kernel.
		dilations: []int{h.Dilation - 1, w.Dilation - 1},
		padLeft:   []int{h.PadBefore, w.PadBefore},
		padRight:  []int{h.PadAfter, w.PadAfter},
	}
}

func (g *engineGeometry) params() convgrad.Params {
	return convgrad.NewParams(g.diffSrc, g.filter, g.diffDst, g.strides, g.dilations,
		g.padLeft, g.padRight, engine.PaddingZero)
}
