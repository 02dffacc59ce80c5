// Package engine is the compute engine behind convgrad: it describes
// memory layouts, derives the layouts a convolution prefers, compiles
// convolution primitives, converts data between layouts and executes
// compiled primitives on a stream.
//
// Engine objects mirror the usual descriptor life cycle of native DNN
// libraries:
//
//	desc := NewConvBackwardDataDesc(...)        // what to compute, formats may be FormatAny
//	fwd, _ := NewConvForwardPrimitiveDesc(...)  // forward hint
//	pd, _ := NewConvBackwardDataPrimitiveDesc(desc, eng, fwd) // concrete layouts chosen
//	prim, _ := NewConvBackwardData(pd, diffDst, weights, diffSrc)
//	_ = NewStream(eng).Submit([]Primitive{prim})
//
// All operations report failures as *Error values carrying a Status.
package engine

import (
	"github.com/born-ml/convgrad/internal/envconfig"
	"github.com/born-ml/convgrad/internal/parallel"
)

// Kind identifies the device an engine targets.
type Kind int

// Engine kinds. Only the CPU engine exists.
const (
	CPU Kind = iota
)

// String returns the engine kind name.
func (k Kind) String() string {
	if k == CPU {
		return "cpu"
	}
	return "unknown"
}

// Options configure an Engine.
type Options struct {
	// BlockSize is the channel blocking factor used when a primitive
	// descriptor resolves FormatAny. Values below 2 disable blocked layouts.
	BlockSize int
	// Parallel controls how kernels split work.
	Parallel parallel.Config
}

// DefaultOptions reads CONVGRAD_BLOCK_SIZE and CONVGRAD_NUM_THREADS.
func DefaultOptions() Options {
	return Options{
		BlockSize: int(envconfig.BlockSize()),
		Parallel:  parallel.DefaultConfig(),
	}
}

// Engine is a compute device handle. It is immutable and safe for
// concurrent use.
type Engine struct {
	kind      Kind
	index     int
	blockSize int
	par       parallel.Config
}

// New creates a CPU engine.
func New(opts Options) *Engine {
	block := opts.BlockSize
	if block < 2 {
		block = 0
	}
	return &Engine{
		kind:      CPU,
		blockSize: block,
		par:       opts.Parallel,
	}
}

// NewDefault creates a CPU engine with DefaultOptions.
func NewDefault() *Engine {
	return New(DefaultOptions())
}

// Kind returns the engine kind.
func (e *Engine) Kind() Kind {
	return e.kind
}

// BlockSize returns the channel blocking factor, zero when disabled.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// resolveData picks the layout for an activation descriptor. Concrete
// formats are kept as given.
func (e *Engine) resolveData(d MemoryDesc) MemoryDesc {
	if d.Format != FormatAny {
		return d
	}
	if e.blockSize > 0 && d.Dims[1] >= e.blockSize {
		return NewBlockedMemoryDesc(d.Dims, d.DataType, FormatNChwXc, e.blockSize)
	}
	return NewMemoryDesc(d.Dims, d.DataType, FormatNCHW)
}

// resolveWeights picks the layout for a weights descriptor.
func (e *Engine) resolveWeights(d MemoryDesc) MemoryDesc {
	if d.Format != FormatAny {
		return d
	}
	if e.blockSize > 0 && d.Dims[0] >= e.blockSize && d.Dims[1] >= e.blockSize {
		return NewBlockedMemoryDesc(d.Dims, d.DataType, FormatOIhwXiXo, e.blockSize)
	}
	return NewMemoryDesc(d.Dims, d.DataType, FormatOIHW)
}

// forPlanes runs f for every (outer, inner) pair of a 4-D tensor's leading
// dims. Pairs are independent, so f may write its plane without locks.
func forPlanes(e *Engine, outer, inner int, f func(a, b int)) {
	parallel.ForBatch(outer, inner, f, e.par)
}
