package formation

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidTemplate = errors.New("formation template does not sum to team size")
	ErrTeamSize        = errors.New("team size out of range")
)
