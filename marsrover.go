// Package marsrover simulates a rover driving on the surface of a cube.
//
// Each of the six faces is a square grid. The rover turns in place and moves
// one cell at a time; a move off the edge of a face continues onto the
// adjacent face with the coordinates and heading remapped by a fixed
// topology table. Cells may be blocked by obstacles, and a move into a
// blocked cell is refused without changing the rover's state.
//
// # Features
//
//   - Seeded obstacle generation at a configurable density
//   - Two crossing tables: the reference unfolding and a geometric one in
//     which every edge crossing retraces
//   - Step tracking with odometry and a step callback
//
// # Quick Start
//
//	m, err := marsrover.New(marsrover.WithSeed(42))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m.OnStep(func(s rover.Step) {
//	    fmt.Println(s.Command, s.Result.State)
//	})
//
//	for _, c := range []rover.Command{rover.Forward, rover.TurnRight, rover.Forward} {
//	    m.Execute(c)
//	}
//
// # Replaying a Mission
//
// The obstacle list and start state of a mission are enough to reproduce it:
//
//	again, err := marsrover.New(
//	    marsrover.WithStart(m.Initial()),
//	    marsrover.WithObstacles(m.Obstacles()),
//	)
package marsrover

import (
	"fmt"
	"math"
	"math/rand/v2"

	"k8s.io/klog/v2"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Settings records what a mission was built from.
type Settings struct {
	GridSize int               `json:"grid_size"`
	Density  float64           `json:"density"`
	Seed     uint64            `json:"seed"`
	Start    cube.State        `json:"start"`
	Topology cube.Net          `json:"topology"`
	Strategy obstacle.Strategy `json:"strategy"`
}

// Mission is one rover on one obstacle field. It is not safe for concurrent
// use; the field it was built from may be shared.
type Mission struct {
	settings Settings
	topo     *cube.Topology
	field    *obstacle.Field
	tracker  *rover.Tracker
}

// NewRand returns the generator a mission uses for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// New builds a topology, an obstacle field and a rover from opts.
func New(opts ...Option) (*Mission, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.gridSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGridSize, cfg.gridSize)
	}
	if math.IsNaN(cfg.density) || cfg.density < 0 || cfg.density >= 1 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidDensity, cfg.density)
	}
	if !cfg.start.Valid(cfg.gridSize) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStart, cfg.start)
	}

	topo, err := cube.NewTopology(cfg.gridSize, cfg.net)
	if err != nil {
		return nil, err
	}

	if cfg.seed == 0 {
		cfg.seed = rand.Uint64() | 1
	}
	startCell := cube.Obstacle{Face: cfg.start.Face, X: cfg.start.Cell.X, Y: cfg.start.Cell.Y}

	var field *obstacle.Field
	switch {
	case cfg.checker != nil:
		field = obstacle.Empty(cfg.gridSize)
	case cfg.field != nil:
		field = cfg.field
		if field.Size() != cfg.gridSize {
			return nil, fmt.Errorf("%w: field is %dx%d, mission is %dx%d",
				ErrInvalidGridSize, field.Size(), field.Size(), cfg.gridSize, cfg.gridSize)
		}
		if field.HasObstacle(startCell.Face, startCell.X, startCell.Y) {
			return nil, fmt.Errorf("%w: %s", ErrStartBlocked, startCell)
		}
	case cfg.fixed:
		field, err = obstacle.FromObstacles(cfg.gridSize, cfg.obstacles, startCell)
		if err != nil {
			return nil, err
		}
	default:
		params := obstacle.Params{
			Faces:    cube.NumFaces,
			GridSize: cfg.gridSize,
			Density:  cfg.density,
			Strategy: cfg.strategy,
		}
		field = obstacle.Generate(params, startCell, NewRand(cfg.seed))
		if short := field.Shortfall(); short > 0 {
			klog.Warningf("obstacle generation placed %d of %d obstacles after %d attempts",
				field.Len(), field.Target(), field.Attempts())
		}
	}

	checker := cfg.checker
	if checker == nil {
		checker = field
	}
	r, err := rover.New(topo, checker, cfg.start)
	if err != nil {
		return nil, err
	}

	tracker := rover.NewTracker(r)
	tracker.SetHistory(cfg.history)

	m := &Mission{
		settings: Settings{
			GridSize: cfg.gridSize,
			Density:  cfg.density,
			Seed:     cfg.seed,
			Start:    cfg.start,
			Topology: cfg.net,
			Strategy: field.Strategy(),
		},
		topo:    topo,
		field:   field,
		tracker: tracker,
	}
	klog.V(1).Infof("mission: %dx%d %s topology, %d obstacles, start %s",
		cfg.gridSize, cfg.gridSize, cfg.net, field.Len(), cfg.start)
	return m, nil
}

// OnStep sets a callback that fires after every executed command.
func (m *Mission) OnStep(cb func(rover.Step)) {
	m.tracker.SetStepCallback(cb)
}

// Execute runs one command.
func (m *Mission) Execute(c rover.Command) rover.Step {
	step := m.tracker.Execute(c)
	klog.V(2).Infof("step %d: %s %s -> %s blocked=%v",
		step.Seq, c, step.Before, step.Result.State, step.Result.Blocked)
	return step
}

// Run executes commands in order.
func (m *Mission) Run(cmds []rover.Command) []rover.Step {
	steps := make([]rover.Step, 0, len(cmds))
	for _, c := range cmds {
		steps = append(steps, m.Execute(c))
	}
	return steps
}

// State returns the rover's current state.
func (m *Mission) State() cube.State { return m.tracker.State() }

// Initial returns the landing state.
func (m *Mission) Initial() cube.State { return m.tracker.Initial() }

// Settings returns what the mission was built from.
func (m *Mission) Settings() Settings { return m.settings }

// Topology returns the crossing table.
func (m *Mission) Topology() *cube.Topology { return m.topo }

// Field returns the obstacle field. It is read-only and may be shared.
func (m *Mission) Field() *obstacle.Field { return m.field }

// Obstacles returns every obstacle on the field.
func (m *Mission) Obstacles() []cube.Obstacle { return m.field.All() }

// History returns the executed steps, if history is enabled.
func (m *Mission) History() []rover.Step { return m.tracker.History() }

// Odometry returns the run's counters.
func (m *Mission) Odometry() rover.Odometry { return m.tracker.Odometry() }
