package convgrad

import (
	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/logutil"
	"github.com/born-ml/convgrad/internal/tensor"
	"github.com/pkg/errors"
)

// Operand is a caller buffer as a plan will read it: either the caller's
// own data, or a scratch copy converted to the plan's preferred layout.
type Operand[T tensor.Float] struct {
	data    []T
	desc    engine.MemoryDesc
	scratch []byte
	pool    *ScratchPool
}

// Data returns the buffer to pass to Primitive.Execute.
func (o *Operand[T]) Data() []T { return o.data }

// Desc returns the layout Data is in. It always equals the preferred
// layout the operand was negotiated against.
func (o *Operand[T]) Desc() engine.MemoryDesc { return o.desc }

// Reordered reports whether Data is a scratch copy.
func (o *Operand[T]) Reordered() bool { return o.scratch != nil }

// Release returns the scratch copy, if any, to its pool. Data must not be
// used afterwards. Release is idempotent.
func (o *Operand[T]) Release() {
	if o.scratch == nil {
		return
	}
	o.pool.Release(o.scratch)
	o.scratch = nil
	o.data = nil
}

// Negotiate makes data, laid out as actual, readable in the preferred
// layout. Structurally equal layouts are passed through without copying;
// otherwise exactly one engine reorder writes into a buffer taken from pool.
func Negotiate[T tensor.Float](eng *engine.Engine, actual, preferred engine.MemoryDesc, data []T, pool *ScratchPool) (*Operand[T], error) {
	if actual.Equal(preferred) {
		return &Operand[T]{data: data, desc: preferred}, nil
	}
	if pool == nil {
		pool = NewScratchPool(0)
	}

	scratch := pool.Acquire(preferred.Size())
	if err := eng.Reorder(actual, tensor.Bytes(data), preferred, scratch); err != nil {
		pool.Release(scratch)
		return nil, errors.Wrapf(err, "reorder %s to %s", actual, preferred)
	}
	logutil.Trace("reordered operand", "from", actual, "to", preferred, "bytes", len(scratch))
	return &Operand[T]{
		data:    tensor.View[T](scratch),
		desc:    preferred,
		scratch: scratch,
		pool:    pool,
	}, nil
}
