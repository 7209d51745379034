package session

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by a Signer or Coordinator is an
// *Error whose Kind is one of these, so callers can use errors.Is.
var (
	ErrInvalidState     = errors.New("invalid signer state")
	ErrNotEnoughSigners = errors.New("not enough signers")
	ErrTimeout          = errors.New("round deadline expired")
	ErrTransport        = errors.New("transport failure")
	ErrFrost            = errors.New("frost failure")
	ErrBitcoin          = errors.New("bitcoin failure")
	ErrInternal         = errors.New("internal error")
)

// Error carries the category of a failure, the operation that hit it and
// the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the category and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
