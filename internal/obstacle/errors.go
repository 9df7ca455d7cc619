package obstacle

import "errors"

// Sentinel errors for the obstacle package.
var (
	ErrOutOfRange   = errors.New("obstacle: cell out of range")
	ErrStartBlocked = errors.New("obstacle: start cell cannot be blocked")
	ErrDuplicate    = errors.New("obstacle: duplicate cell")
)
