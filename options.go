package marsrover

import (
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Option configures a Mission.
type Option func(*config)

type config struct {
	gridSize  int
	density   float64
	seed      uint64
	start     cube.State
	net       cube.Net
	strategy  obstacle.Strategy
	checker   rover.Checker
	obstacles []cube.Obstacle
	fixed     bool
	field     *obstacle.Field
	history   bool
}

func defaultConfig() *config {
	return &config{
		gridSize: obstacle.DefaultGridSize,
		density:  obstacle.DefaultDensity,
		start:    cube.State{Face: cube.Front, Heading: cube.N},
		net:      cube.NetReference,
		strategy: obstacle.StrategyAuto,
		history:  true,
	}
}

// WithGridSize sets the side length of every face. Default 10.
func WithGridSize(n int) Option {
	return func(c *config) {
		c.gridSize = n
	}
}

// WithDensity sets the fraction of cells that generation blocks. Default 0.10.
func WithDensity(d float64) Option {
	return func(c *config) {
		c.density = d
	}
}

// WithSeed makes obstacle generation reproducible. Zero picks a random seed,
// which is still reported by Mission.Settings.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
	}
}

// WithStart sets the rover's landing state. Default FRONT (0,0) heading N.
func WithStart(s cube.State) Option {
	return func(c *config) {
		c.start = s
	}
}

// WithTopology selects the crossing table.
func WithTopology(net cube.Net) Option {
	return func(c *config) {
		c.net = net
	}
}

// WithStrategy selects how obstacles are drawn.
func WithStrategy(s obstacle.Strategy) Option {
	return func(c *config) {
		c.strategy = s
	}
}

// WithObstacles replaces generation with a fixed obstacle list, as restored
// from a session or a journal.
func WithObstacles(list []cube.Obstacle) Option {
	return func(c *config) {
		c.obstacles = append([]cube.Obstacle(nil), list...)
		c.fixed = true
	}
}

// WithField drives on an existing obstacle field. Fields are read-only, so
// many missions may share one.
func WithField(f *obstacle.Field) Option {
	return func(c *config) {
		c.field = f
	}
}

// WithChecker blocks moves using an external checker instead of a generated
// field. The mission's Field is then empty.
func WithChecker(ch rover.Checker) Option {
	return func(c *config) {
		c.checker = ch
	}
}

// WithHistory enables or disables step history.
// When enabled (default), all steps are kept and accessible via History().
// Disable this for long sessions to reduce memory usage.
func WithHistory(enabled bool) Option {
	return func(c *config) {
		c.history = enabled
	}
}
