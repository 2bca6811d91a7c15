package mal

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failure raised anywhere in the assembler pipeline.
// All errors returned by this package carry one of these kinds, retrievable
// with errors.As.
type ErrorKind int

const (
	// ParseError is raised by the lexer/parser on any syntactically
	// invalid input.
	ParseError ErrorKind = iota
	// InvalidIfElsePairing is raised when an if/else statement tries to
	// register a pair that conflicts with an existing binding.
	InvalidIfElsePairing
	// InfeasibleLayout is raised when the allocator cannot place a
	// pinned, single, or displaced-pair block.
	InfeasibleLayout
	// IOError wraps a failure reading source or writing output.
	IOError
)

func (k ErrorKind) String() string {
	switch k {
	case ParseError:
		return "parse error"
	case InvalidIfElsePairing:
		return "invalid if/else pairing"
	case InfeasibleLayout:
		return "infeasible layout"
	case IOError:
		return "io error"
	default:
		return "error"
	}
}

// kindError pairs an ErrorKind with an underlying, already-annotated error
// produced by github.com/pkg/errors (so %+v on it still prints a stack
// trace to the point the kind was attached).
type kindError struct {
	kind ErrorKind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Kind() ErrorKind { return e.kind }

// newError builds a kind-tagged, stack-annotated error.
func newError(kind ErrorKind, format string, args ...any) error {
	return &kindError{kind: kind, err: errors.WithStack(fmt.Errorf(format, args...))}
}

// wrapError tags an existing error with a kind, preserving its stack if it
// already has one.
func wrapError(kind ErrorKind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, format, args...)
	return &kindError{kind: kind, err: wrapped}
}

// KindErrorf wraps err with kind, for callers outside this package (the CLI
// front end) that need to attach an ErrorKind to an I/O failure.
func KindErrorf(kind ErrorKind, err error, format string, args ...any) error {
	return wrapError(kind, err, format, args...)
}

// KindOf extracts the ErrorKind from an error produced by this package, if
// any.
func KindOf(err error) (ErrorKind, bool) {
	var ke *kindError
	if stderrors.As(err, &ke) {
		return ke.kind, true
	}
	return 0, false
}
