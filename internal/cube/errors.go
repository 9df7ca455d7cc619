package cube

import "errors"

// Sentinel errors for the cube package.
var (
	ErrInvalidGridSize    = errors.New("cube: grid size must be positive")
	ErrIncompleteTopology = errors.New("cube: incomplete topology")
	ErrNotOffGrid         = errors.New("cube: coordinate is not off exactly one edge")
	ErrInvalidStep        = errors.New("cube: step direction must be +1 or -1")
)
