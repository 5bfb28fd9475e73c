package lineup

import "errors"

// Sentinel errors. Callers usually match the errs kind they are wrapped in instead.
var (
	ErrUnknownPlayer   = errors.New("player not in assignment")
	ErrSlotOutOfRange  = errors.New("slot out of range")
	ErrVersionMismatch = errors.New("assignment version changed")
	ErrOccupancy       = errors.New("slot occupancy violated")
)
