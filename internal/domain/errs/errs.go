// Package errs defines the error kinds surfaced by the balancing engine.
//
// Every engine error wraps exactly one kind so callers can branch with
// errors.Is without parsing messages:
//
//	ErrValidation      bad input, rejected before any mutation
//	ErrConflict        the assignment changed under the caller; retry on the latest version
//	ErrPersistence     the persistence collaborator failed and local state was rolled back
//	ErrIncompleteState a team does not match its formation yet
//	ErrNotFound        unknown session or player
//	ErrOverloaded      asynchronous work was refused because its queue is full
package errs

import (
	"errors"
	"fmt"
)

// Kinds.
var (
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrPersistence     = errors.New("persistence error")
	ErrIncompleteState = errors.New("incomplete state")
	ErrNotFound        = errors.New("not found")
	ErrOverloaded      = errors.New("overloaded")
)

var kinds = []error{ErrValidation, ErrConflict, ErrPersistence, ErrIncompleteState, ErrNotFound, ErrOverloaded} //nolint:gochecknoglobals // closed set

// Error carries the failing operation, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Kind == nil || errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds a kinded error with a formatted message.
func New(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches op and kind to err. A nil err yields nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the first known kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
