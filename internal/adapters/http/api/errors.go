package api

import (
	"errors"
	"fmt"

	"github.com/okian/kickoff/internal/domain/errs"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrServe      = errors.New("http serve failed")
)

// NewKind returns a validation error for op carrying kind as its cause.
func NewKind(op string, kind error) error {
	return errs.Wrap(op, errs.ErrValidation, kind)
}

// WrapKind joins kind and err under a validation error for op.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return errs.Wrap(op, errs.ErrValidation, fmt.Errorf("%w: %w", kind, err))
}
