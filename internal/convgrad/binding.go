package convgrad

import (
	"github.com/born-ml/convgrad/internal/engine"
	"github.com/pkg/errors"
)

// binding attaches caller buffers to a plan's memory handles for one
// execution. release puts every handle back on engine.DummyData, so a plan
// never retains caller memory after Execute returns.
type binding struct {
	mems []*engine.Memory
}

// bind sets each handle to its buffer. On failure the handles already bound
// are reset before returning.
func bind(mems []*engine.Memory, bufs [][]byte) (*binding, error) {
	b := &binding{mems: mems}
	for i, m := range mems {
		if err := m.SetDataHandle(bufs[i]); err != nil {
			b.release()
			return nil, errors.Wrapf(err, "bind operand %d", i)
		}
	}
	return b, nil
}

func (b *binding) release() {
	for _, m := range b.mems {
		// The sentinel always fits.
		_ = m.SetDataHandle(engine.DummyData)
	}
}
