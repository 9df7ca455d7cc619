package rover

import "errors"

// Sentinel errors for the rover package.
var (
	ErrNoTopology     = errors.New("rover: topology is required")
	ErrInvalidState   = errors.New("rover: invalid state")
	ErrUnknownCommand = errors.New("rover: unknown command")
)
