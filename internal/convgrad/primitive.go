package convgrad

import (
	"log/slog"
	"sync"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/tensor"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Primitive is a compiled backward-data plan for one shape key and element
// type. Everything except the bound buffer addresses is fixed at
// construction; Execute may be called from multiple goroutines.
type Primitive[T tensor.Float] struct {
	id     uuid.UUID
	params Params
	engine *engine.Engine

	bwdDesc *engine.ConvBackwardDataDesc
	fwdDesc *engine.ConvForwardDesc
	fwdPD   *engine.ConvForwardPrimitiveDesc
	bwdPD   *engine.ConvBackwardDataPrimitiveDesc

	filterFormat  engine.Format
	diffDstFormat engine.Format

	diffSrcMem *engine.Memory
	filterMem  *engine.Memory
	diffDstMem *engine.Memory

	net    []engine.Primitive
	stream *engine.Stream

	mu sync.Mutex
}

// NewPrimitive compiles the plan for p on eng.
func NewPrimitive[T tensor.Float](eng *engine.Engine, p Params) (*Primitive[T], error) {
	if eng == nil {
		return nil, errors.New("convgrad: nil engine")
	}
	dt := tensor.DataTypeOf[T]()
	prim := &Primitive[T]{
		id:     uuid.New(),
		params: p.clone(),
		engine: eng,
	}

	diffSrcAny := engine.NewMemoryDesc(p.DiffSrcDims, dt, engine.FormatAny)
	filterAny := engine.NewMemoryDesc(p.FilterDims, dt, engine.FormatAny)
	diffDstAny := engine.NewMemoryDesc(p.DiffDstDims, dt, engine.FormatAny)

	var err error
	prim.bwdDesc, err = engine.NewConvBackwardDataDesc(engine.AlgorithmDirect,
		diffSrcAny, filterAny, diffDstAny,
		p.Strides, p.Dilations, p.PaddingLeft, p.PaddingRight, p.Padding)
	if err != nil {
		return nil, errors.Wrap(err, "backward data descriptor")
	}
	prim.fwdDesc, err = engine.NewConvForwardDesc(engine.PropForward, engine.AlgorithmDirect,
		diffSrcAny, filterAny, diffDstAny,
		p.Strides, p.Dilations, p.PaddingLeft, p.PaddingRight, p.Padding)
	if err != nil {
		return nil, errors.Wrap(err, "forward descriptor")
	}
	prim.fwdPD, err = engine.NewConvForwardPrimitiveDesc(prim.fwdDesc, eng)
	if err != nil {
		return nil, errors.Wrap(err, "forward primitive descriptor")
	}
	prim.bwdPD, err = engine.NewConvBackwardDataPrimitiveDesc(prim.bwdDesc, eng, prim.fwdPD)
	if err != nil {
		return nil, errors.Wrap(err, "backward data primitive descriptor")
	}

	prim.filterFormat = prim.bwdPD.WeightsDesc().Format
	prim.diffDstFormat = prim.bwdPD.DiffDstDesc().Format

	if prim.diffSrcMem, err = engine.NewMemory(prim.bwdPD.DiffSrcDesc(), engine.DummyData); err != nil {
		return nil, errors.Wrap(err, "diff_src memory")
	}
	if prim.filterMem, err = engine.NewMemory(prim.bwdPD.WeightsDesc(), engine.DummyData); err != nil {
		return nil, errors.Wrap(err, "filter memory")
	}
	if prim.diffDstMem, err = engine.NewMemory(prim.bwdPD.DiffDstDesc(), engine.DummyData); err != nil {
		return nil, errors.Wrap(err, "diff_dst memory")
	}

	bwd, err := engine.NewConvBackwardData(prim.bwdPD, prim.diffDstMem, prim.filterMem, prim.diffSrcMem)
	if err != nil {
		return nil, errors.Wrap(err, "backward data primitive")
	}
	prim.net = []engine.Primitive{bwd}
	prim.stream = engine.NewStream(eng)

	slog.Debug("built conv2d backward input plan",
		"plan", prim.id,
		"key", p.Key(),
		"dtype", dt,
		"diff_src", prim.bwdPD.DiffSrcDesc(),
		"filter", prim.bwdPD.WeightsDesc(),
		"diff_dst", prim.bwdPD.DiffDstDesc())
	return prim, nil
}

// Execute computes diffSrc from filter and diffDst. Every buffer must be
// laid out as the matching descriptor accessor reports and hold at least
// that many elements. The handles are reset to engine.DummyData on return,
// whether or not execution succeeded.
func (p *Primitive[T]) Execute(diffSrc, filter, diffDst []T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := bind(
		[]*engine.Memory{p.diffSrcMem, p.filterMem, p.diffDstMem},
		[][]byte{operandBytes(diffSrc), operandBytes(filter), operandBytes(diffDst)},
	)
	if err != nil {
		return err
	}
	defer b.release()

	return p.stream.Submit(p.net)
}

// operandBytes views s as bytes. An empty operand stays distinct from the
// sentinel so that it is rejected by the size check instead of slipping
// through as "unbound".
func operandBytes[T tensor.Float](s []T) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	return tensor.Bytes(s)
}

// Bound reports whether any memory handle currently holds a caller buffer.
func (p *Primitive[T]) Bound() bool {
	return !p.diffSrcMem.IsDummy() || !p.filterMem.IsDummy() || !p.diffDstMem.IsDummy()
}

// ID identifies the plan in logs.
func (p *Primitive[T]) ID() uuid.UUID { return p.id }

// Params returns a copy of the plan's shape key.
func (p *Primitive[T]) Params() Params { return p.params.clone() }

// FilterFormat returns the filter layout the plan prefers.
func (p *Primitive[T]) FilterFormat() engine.Format { return p.filterFormat }

// DiffDstFormat returns the output-gradient layout the plan prefers.
func (p *Primitive[T]) DiffDstFormat() engine.Format { return p.diffDstFormat }

// FilterDesc returns the filter memory descriptor the plan reads.
func (p *Primitive[T]) FilterDesc() engine.MemoryDesc { return p.bwdPD.WeightsDesc() }

// DiffDstDesc returns the output-gradient memory descriptor the plan reads.
func (p *Primitive[T]) DiffDstDesc() engine.MemoryDesc { return p.bwdPD.DiffDstDesc() }

// DiffSrcDesc returns the memory descriptor of the computed input gradient.
func (p *Primitive[T]) DiffSrcDesc() engine.MemoryDesc { return p.bwdPD.DiffSrcDesc() }

// Engine returns the engine the plan was compiled for.
func (p *Primitive[T]) Engine() *engine.Engine { return p.engine }
