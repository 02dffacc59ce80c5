// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides convolution gradient operators backed by a plan
// cache.
//
// Example:
//
//	reg := ops.NewRegistry[float32]()
//	op, _ := ops.NewConv2DBackpropInput(ops.Attrs{
//	    Strides: []int{1, 1, 1, 1},
//	    Padding: ops.Same,
//	}, reg)
//	out, _ := op.Compute(inputSizes, filter, outBackprop)
//	grad, _ := ops.ToCanonical(reg, out)
package ops

import (
	"github.com/born-ml/convgrad/internal/convgrad"
	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/ops"
	"github.com/born-ml/convgrad/internal/tensor"
)

// Registry caches compiled plans for one element type. Create one per
// session and share it between operator instances.
type Registry[T tensor.Float] = convgrad.Registry[T]

// RegistryStats counts registry activity.
type RegistryStats = convgrad.Stats

// ScratchPool recycles layout conversion buffers.
type ScratchPool = convgrad.ScratchPool

// Conv2DBackpropInput computes the input gradient of a 2-D convolution.
type Conv2DBackpropInput[T tensor.Float] = ops.Conv2DBackpropInput[T]

// Operator attributes and metadata.
type (
	Attrs      = ops.Attrs
	Padding    = ops.Padding
	DataFormat = ops.DataFormat
	LayoutMeta = ops.LayoutMeta
	Input      = ops.Input
	Output     = ops.Output
	Option     = ops.Option
)

// Padding policies.
const (
	Valid    = ops.Valid
	Same     = ops.Same
	Explicit = ops.Explicit
)

// Data formats.
const (
	NHWC = ops.NHWC
	NCHW = ops.NCHW
)

// Error is the failure of one operator call.
type Error = ops.Error

// Code classifies operator failures.
type Code = ops.Code

// Error codes.
const (
	CodeInvalidArgument = ops.CodeInvalidArgument
	CodeUnimplemented   = ops.CodeUnimplemented
	CodeAborted         = ops.CodeAborted
)

// NewRegistry creates a registry on a CPU engine configured from the
// environment.
func NewRegistry[T tensor.Float]() *Registry[T] {
	return convgrad.NewRegistry[T](engine.NewDefault())
}

// NewScratchPool creates a pool retaining up to limit buffers per size class.
func NewScratchPool(limit int) *ScratchPool {
	return convgrad.NewScratchPool(limit)
}

// NewConv2DBackpropInput creates the operator.
func NewConv2DBackpropInput[T tensor.Float](attrs Attrs, reg *Registry[T], opts ...Option) (*Conv2DBackpropInput[T], error) {
	return ops.NewConv2DBackpropInput(attrs, reg, opts...)
}

// WithScratchPool sets the pool layout conversions draw buffers from.
func WithScratchPool(p *ScratchPool) Option {
	return ops.WithScratchPool(p)
}

// Canonical wraps a tensor stored in canonical layout.
func Canonical(t *tensor.RawTensor) Input {
	return ops.Canonical(t)
}

// ToCanonical converts out to its canonical layout on reg's engine.
func ToCanonical[T tensor.Float](reg *Registry[T], out *Output) (*tensor.RawTensor, error) {
	return ops.ToCanonical[T](reg.Engine(), out)
}

// OutBackpropShape returns the shape out_backprop must have for a
// convolution of input with filter.
func OutBackpropShape(attrs Attrs, input, filter tensor.Shape) (tensor.Shape, error) {
	return ops.OutBackpropShape(attrs, input, filter)
}

// ParsePadding parses "VALID", "SAME" or "EXPLICIT".
func ParsePadding(s string) (Padding, error) {
	return ops.ParsePadding(s)
}

// ParseDataFormat parses "NHWC" or "NCHW".
func ParseDataFormat(s string) (DataFormat, error) {
	return ops.ParseDataFormat(s)
}

// IsInvalidArgument reports whether err is an invalid-argument failure.
func IsInvalidArgument(err error) bool { return ops.IsInvalidArgument(err) }

// IsUnimplemented reports whether err is an unimplemented failure.
func IsUnimplemented(err error) bool { return ops.IsUnimplemented(err) }

// IsAborted reports whether err is an engine failure.
func IsAborted(err error) bool { return ops.IsAborted(err) }
