package ops

import (
	"fmt"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/pkg/errors"
)

// Code classifies operator failures.
type Code int

// Error codes.
const (
	CodeInvalidArgument Code = iota + 1
	CodeUnimplemented
	CodeAborted
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeUnimplemented:
		return "Unimplemented"
	case CodeAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is the failure of one operator call.
type Error struct {
	Code Code
	Op   string
	Msg  string
	// Status and Location are set for engine failures (CodeAborted).
	Status   engine.Status
	Location string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == CodeAborted {
		return fmt.Sprintf("%s: %s: Operation received an exception: Status: %d, message: %s, in file %s",
			e.Op, e.Code, int(e.Status), e.Msg, e.Location)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Msg)
}

// Unwrap returns the underlying engine error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

func invalidArgument(op, format string, args ...any) error {
	return &Error{Code: CodeInvalidArgument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func unimplemented(op, format string, args ...any) error {
	return &Error{Code: CodeUnimplemented, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// aborted translates an engine failure. The message is the engine's own;
// the location is where the engine raised it.
func aborted(op string, err error) error {
	msg := err.Error()
	var ee *engine.Error
	if errors.As(err, &ee) {
		msg = ee.Message
	}
	return &Error{
		Code:     CodeAborted,
		Op:       op,
		Msg:      msg,
		Status:   engine.StatusOf(err),
		Location: location(err),
		cause:    err,
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// location returns file:line of the innermost stack recorded in err's chain,
// skipping error constructors.
func location(err error) string {
	var loc string
	for e := err; e != nil; e = errors.Unwrap(e) {
		st, ok := e.(stackTracer)
		if !ok {
			continue
		}
		for _, f := range st.StackTrace() {
			if fn := fmt.Sprintf("%n", f); fn == "newError" {
				continue
			}
			loc = fmt.Sprintf("%s:%d", f, f)
			break
		}
	}
	return loc
}

func codeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsInvalidArgument reports whether err is an invalid-argument failure.
func IsInvalidArgument(err error) bool {
	return codeOf(err) == CodeInvalidArgument
}

// IsUnimplemented reports whether err is an unimplemented failure.
func IsUnimplemented(err error) bool {
	return codeOf(err) == CodeUnimplemented
}

// IsAborted reports whether err is an engine failure.
func IsAborted(err error) bool {
	return codeOf(err) == CodeAborted
}
