package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status classifies engine failures.
type Status int

// Engine status codes.
const (
	StatusSuccess Status = iota
	StatusOutOfMemory
	StatusInvalidArguments
	StatusUnimplemented
	StatusRuntimeError
	StatusNotBound
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusOutOfMemory:
		return "out_of_memory"
	case StatusInvalidArguments:
		return "invalid_arguments"
	case StatusUnimplemented:
		return "unimplemented"
	case StatusRuntimeError:
		return "runtime_error"
	case StatusNotBound:
		return "not_bound"
	default:
		return "unknown"
	}
}

// Error is returned by every engine operation that fails.
type Error struct {
	Status  Status
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("engine status %d (%s): %s", int(e.Status), e.Status, e.Message)
}

// newError builds an *Error carrying the caller's stack.
func newError(status Status, format string, args ...any) error {
	return errors.WithStack(&Error{Status: status, Message: fmt.Sprintf(format, args...)})
}

// StatusOf extracts the engine status from err, or StatusRuntimeError if err
// did not originate in the engine.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusRuntimeError
}
