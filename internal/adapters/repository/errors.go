package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound        = errors.New("player not found")
	ErrUnknownSession  = errors.New("session not found")
	ErrUnknownSlot     = errors.New("slot not found")
	ErrBindingConflict = errors.New("player bound to more than one slot")
	ErrInvalidPlayer   = errors.New("invalid player")
)
