package marsrover

import (
	"errors"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Sentinel errors for the marsrover package.
var (
	// Configuration errors
	ErrInvalidGridSize = cube.ErrInvalidGridSize
	ErrInvalidDensity  = errors.New("marsrover: density must be in [0, 1)")
	ErrInvalidStart    = rover.ErrInvalidState

	// Topology errors
	ErrIncompleteTopology = cube.ErrIncompleteTopology

	// Obstacle errors
	ErrStartBlocked = obstacle.ErrStartBlocked
	ErrOutOfRange   = obstacle.ErrOutOfRange
)
