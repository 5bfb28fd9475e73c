package model

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidAttribute = errors.New("attribute out of range")
	ErrUnknownTeam      = errors.New("unknown team")
	ErrDuplicatePlayer  = errors.New("player occupies more than one place")
	ErrSlotLayout       = errors.New("slot layout does not match formation")
	ErrInvalidReport    = errors.New("invalid performance report")
)
