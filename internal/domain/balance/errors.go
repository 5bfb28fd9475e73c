package balance

import "errors"

// Sentinel error kinds for this package. Each is also wrapped with errs.ErrValidation when returned.
var (
	ErrUnknownStrategy    = errors.New("unknown strategy")
	ErrStrategyNotAllowed = errors.New("strategy not allowed for team sizes")
	ErrPoolTooSmall       = errors.New("pool too small")
	ErrPoolTooLarge       = errors.New("pool larger than available slots")
	ErrDuplicatePlayer    = errors.New("duplicate player in pool")
	ErrNegativeWeight     = errors.New("weights must be non-negative")
)
