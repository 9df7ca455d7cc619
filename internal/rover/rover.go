// Package rover implements the rover state machine: turning, moving across
// face edges, and refusing moves into blocked cells.
package rover

import (
	"fmt"
	"strings"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
)

// Checker reports whether a cell is blocked. The rover only needs this
// capability; it does not care how obstacles were produced.
type Checker interface {
	HasObstacle(face cube.Face, x, y int) bool
}

// CheckerFunc adapts a function to a Checker.
type CheckerFunc func(face cube.Face, x, y int) bool

// HasObstacle calls f.
func (f CheckerFunc) HasObstacle(face cube.Face, x, y int) bool { return f(face, x, y) }

// NoObstacles is a Checker that never blocks.
var NoObstacles Checker = CheckerFunc(func(cube.Face, int, int) bool { return false })

// Command is one rover operation.
type Command byte

const (
	TurnLeft  Command = 'L'
	TurnRight Command = 'R'
	Forward   Command = 'F'
	Backward  Command = 'B'
)

func (c Command) String() string {
	switch c {
	case TurnLeft, TurnRight, Forward, Backward:
		return string(c)
	default:
		return "?"
	}
}

// Name returns the long form of the command.
func (c Command) Name() string {
	switch c {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// ParseCommand parses L, R, F, B or their long forms.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "left":
		return TurnLeft, nil
	case "r", "right":
		return TurnRight, nil
	case "f", "forward":
		return Forward, nil
	case "b", "backward", "back":
		return Backward, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Command) MarshalText() ([]byte, error) {
	if c.String() == "?" {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, byte(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Command) UnmarshalText(b []byte) error {
	cmd, err := ParseCommand(string(b))
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}

// IsMove reports whether the command changes position.
func (c Command) IsMove() bool { return c == Forward || c == Backward }

// Result is the outcome of one operation. State is the rover's state after
// the call: the new state on success, the unchanged one when blocked.
type Result struct {
	Success bool       `json:"success"`
	Blocked bool       `json:"blocked"`
	State   cube.State `json:"state"`
}

// Rover owns a rover's state. It is not safe for concurrent use.
type Rover struct {
	topo    *cube.Topology
	checker Checker
	state   cube.State
}

// New creates a rover at initial. A nil checker never blocks.
func New(topo *cube.Topology, checker Checker, initial cube.State) (*Rover, error) {
	if topo == nil {
		return nil, ErrNoTopology
	}
	if !initial.Valid(topo.Size()) {
		return nil, fmt.Errorf("%w: %s on a %dx%d grid", ErrInvalidState, initial, topo.Size(), topo.Size())
	}
	if checker == nil {
		checker = NoObstacles
	}
	return &Rover{topo: topo, checker: checker, state: initial}, nil
}

// State returns the current state.
func (r *Rover) State() cube.State { return r.state }

// Topology returns the crossing table the rover moves on.
func (r *Rover) Topology() *cube.Topology { return r.topo }

// TurnLeft rotates the heading a quarter turn counter-clockwise.
func (r *Rover) TurnLeft() Result {
	r.state.Heading = r.state.Heading.Left()
	return Result{Success: true, State: r.state}
}

// TurnRight rotates the heading a quarter turn clockwise.
func (r *Rover) TurnRight() Result {
	r.state.Heading = r.state.Heading.Right()
	return Result{Success: true, State: r.state}
}

// MoveForward steps one cell along the heading.
func (r *Rover) MoveForward() Result { return r.move(1) }

// MoveBackward steps one cell against the heading, keeping the heading's
// orientation relative to the path.
func (r *Rover) MoveBackward() Result { return r.move(-1) }

// Peek returns the state a single move would reach, without checking
// obstacles or committing. Only the sign of dir counts: positive is forward,
// negative is backward, zero is the current state.
func (r *Rover) Peek(dir int) cube.State {
	switch {
	case dir > 0:
		dir = 1
	case dir < 0:
		dir = -1
	default:
		return r.state
	}
	next, err := r.topo.Step(r.state, dir)
	if err != nil {
		// Unreachable: the state is always on the grid and the topology is
		// total, so a single step is off at most one edge.
		panic(err)
	}
	return next
}

func (r *Rover) move(dir int) Result {
	candidate := r.Peek(dir)
	if r.checker.HasObstacle(candidate.Face, candidate.Cell.X, candidate.Cell.Y) {
		return Result{Success: false, Blocked: true, State: r.state}
	}
	r.state = candidate
	return Result{Success: true, State: r.state}
}

// Execute runs one command. Unknown commands fail without changing state.
func (r *Rover) Execute(c Command) Result {
	switch c {
	case TurnLeft:
		return r.TurnLeft()
	case TurnRight:
		return r.TurnRight()
	case Forward:
		return r.MoveForward()
	case Backward:
		return r.MoveBackward()
	default:
		return Result{State: r.state}
	}
}
