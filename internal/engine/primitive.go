package engine

import "github.com/pkg/errors"

// Primitive is a compiled, executable unit of work bound to memory objects.
type Primitive interface {
	// Kind names the primitive for diagnostics.
	Kind() string
	// Execute runs the primitive synchronously against its bound memory.
	Execute() error
}

// Stream executes primitives in submission order.
type Stream struct {
	engine *Engine
}

// NewStream creates an eager stream on eng.
func NewStream(eng *Engine) *Stream {
	return &Stream{engine: eng}
}

// Submit runs each primitive to completion, stopping at the first failure.
func (s *Stream) Submit(prims []Primitive) error {
	for i, p := range prims {
		if err := p.Execute(); err != nil {
			return errors.Wrapf(err, "stream: primitive %d (%s)", i, p.Kind())
		}
	}
	return nil
}
