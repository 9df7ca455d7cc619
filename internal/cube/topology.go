package cube

import (
	"fmt"
	"strings"
)

// Net selects one of the built-in unfoldings of the cube.
type Net int

const (
	// NetReference is the reference unfolding. Its coordinate remaps are
	// geometric, but the eight quarter-turn heading rotations between the
	// side faces and TOP/BOTTOM point the other way, so those eight edges do
	// not retrace when the rover backs up after crossing.
	NetReference Net = iota

	// NetGeometric shares every coordinate remap with NetReference and gives
	// the quarter-turn rotations the sign the folded cube implies. Every
	// edge retraces.
	NetGeometric
)

func (n Net) String() string {
	switch n {
	case NetReference:
		return "reference"
	case NetGeometric:
		return "geometric"
	default:
		return "?"
	}
}

// ParseNet parses "reference" or "geometric".
func ParseNet(s string) (Net, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reference":
		return NetReference, nil
	case "geometric":
		return NetGeometric, nil
	default:
		return 0, fmt.Errorf("unknown topology %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (n Net) MarshalText() ([]byte, error) {
	if n != NetReference && n != NetGeometric {
		return nil, fmt.Errorf("unknown topology %d", int(n))
	}
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Net) UnmarshalText(b []byte) error {
	v, err := ParseNet(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// Rule resolves one (face, exit edge) crossing. Remap receives the
// pre-crossing coordinates, one of which is off the grid, and the grid's
// max index; it reads only the coordinate that is still on the grid.
type Rule struct {
	To    Face
	Remap func(x, y, max int) Cell
	Turn  int
}

type ruleEntry struct {
	from Face
	edge Heading
	rule Rule
}

// referenceRules is the reference unfolding: 6 faces × 4 exit edges.
var referenceRules = []ruleEntry{
	{Front, N, Rule{Top, func(x, y, m int) Cell { return Cell{x, m} }, 0}},
	{Front, S, Rule{Bottom, func(x, y, m int) Cell { return Cell{x, 0} }, 0}},
	{Front, W, Rule{Left, func(x, y, m int) Cell { return Cell{m, y} }, 0}},
	{Front, E, Rule{Right, func(x, y, m int) Cell { return Cell{0, y} }, 0}},

	{Right, N, Rule{Top, func(x, y, m int) Cell { return Cell{m, m - x} }, +1}},
	{Right, S, Rule{Bottom, func(x, y, m int) Cell { return Cell{m, x} }, -1}},
	{Right, W, Rule{Front, func(x, y, m int) Cell { return Cell{m, y} }, 0}},
	{Right, E, Rule{Back, func(x, y, m int) Cell { return Cell{0, y} }, 0}},

	{Back, N, Rule{Top, func(x, y, m int) Cell { return Cell{m - x, 0} }, +2}},
	{Back, S, Rule{Bottom, func(x, y, m int) Cell { return Cell{m - x, m} }, +2}},
	{Back, W, Rule{Right, func(x, y, m int) Cell { return Cell{m, y} }, 0}},
	{Back, E, Rule{Left, func(x, y, m int) Cell { return Cell{0, y} }, 0}},

	{Left, N, Rule{Top, func(x, y, m int) Cell { return Cell{0, x} }, -1}},
	{Left, S, Rule{Bottom, func(x, y, m int) Cell { return Cell{0, m - x} }, +1}},
	{Left, W, Rule{Back, func(x, y, m int) Cell { return Cell{m, y} }, 0}},
	{Left, E, Rule{Front, func(x, y, m int) Cell { return Cell{0, y} }, 0}},

	{Top, N, Rule{Back, func(x, y, m int) Cell { return Cell{m - x, 0} }, +2}},
	{Top, S, Rule{Front, func(x, y, m int) Cell { return Cell{x, 0} }, 0}},
	{Top, W, Rule{Left, func(x, y, m int) Cell { return Cell{y, 0} }, +1}},
	{Top, E, Rule{Right, func(x, y, m int) Cell { return Cell{m - y, 0} }, -1}},

	{Bottom, N, Rule{Front, func(x, y, m int) Cell { return Cell{x, m} }, 0}},
	{Bottom, S, Rule{Back, func(x, y, m int) Cell { return Cell{m - x, m} }, +2}},
	{Bottom, W, Rule{Left, func(x, y, m int) Cell { return Cell{m - y, m} }, -1}},
	{Bottom, E, Rule{Right, func(x, y, m int) Cell { return Cell{y, m} }, +1}},
}

func rulesFor(net Net) ([]ruleEntry, error) {
	switch net {
	case NetReference:
		return referenceRules, nil
	case NetGeometric:
		out := make([]ruleEntry, len(referenceRules))
		copy(out, referenceRules)
		for i := range out {
			if t := out[i].rule.Turn; t == 1 || t == -1 {
				out[i].rule.Turn = -t
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown net %d", ErrIncompleteTopology, int(net))
	}
}

// Topology maps edge crossings on a cube of size×size faces.
type Topology struct {
	size  int
	net   Net
	rules [NumFaces][4]*Rule
}

// NewTopology builds and validates the crossing table for the given net.
// The table must be total over all 24 (face, edge) pairs, every rule must
// target a real face, and every remap must land on the grid.
func NewTopology(size int, net Net) (*Topology, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGridSize, size)
	}
	entries, err := rulesFor(net)
	if err != nil {
		return nil, err
	}
	return buildTopology(size, net, entries)
}

func buildTopology(size int, net Net, entries []ruleEntry) (*Topology, error) {
	t := &Topology{size: size, net: net}
	for i := range entries {
		e := entries[i]
		if !e.from.Valid() || !e.edge.Valid() {
			return nil, fmt.Errorf("%w: rule %d has invalid key %s/%s", ErrIncompleteTopology, i, e.from, e.edge)
		}
		if t.rules[e.from][e.edge] != nil {
			return nil, fmt.Errorf("%w: duplicate rule for %s/%s", ErrIncompleteTopology, e.from, e.edge)
		}
		rule := e.rule
		t.rules[e.from][e.edge] = &rule
	}

	last := size - 1
	for _, f := range Faces {
		for _, edge := range Headings {
			r := t.rules[f][edge]
			if r == nil {
				return nil, fmt.Errorf("%w: no rule for %s/%s", ErrIncompleteTopology, f, edge)
			}
			if !r.To.Valid() || r.Remap == nil {
				return nil, fmt.Errorf("%w: rule %s/%s has no destination", ErrIncompleteTopology, f, edge)
			}
			for i := 0; i < size; i++ {
				x, y := offGrid(edge, i, size)
				if c := r.Remap(x, y, last); !c.InBounds(size) {
					return nil, fmt.Errorf("%w: rule %s/%s maps %d to %s", ErrIncompleteTopology, f, edge, i, c)
				}
			}
		}
	}
	return t, nil
}

// offGrid returns the coordinate one step past the given edge at position i
// along it.
func offGrid(edge Heading, i, size int) (x, y int) {
	switch edge {
	case N:
		return i, -1
	case S:
		return i, size
	case W:
		return -1, i
	default:
		return size, i
	}
}

// Size returns the grid dimension of each face.
func (t *Topology) Size() int { return t.size }

// Net returns the unfolding the table was built from.
func (t *Topology) Net() Net { return t.net }

// Rule returns the crossing rule for leaving face over edge.
func (t *Topology) Rule(face Face, edge Heading) (Rule, bool) {
	if !face.Valid() || !edge.Valid() {
		return Rule{}, false
	}
	r := t.rules[face][edge]
	if r == nil {
		return Rule{}, false
	}
	return *r, true
}

// ExitEdge identifies which boundary (x, y) lies past. Exactly one axis may
// be off the grid; ok is false when the cell is on the grid or off it on
// both axes.
func ExitEdge(x, y, size int) (edge Heading, ok bool) {
	offX := x < 0 || x >= size
	offY := y < 0 || y >= size
	if offX == offY {
		return 0, false
	}
	switch {
	case y < 0:
		return N, true
	case y >= size:
		return S, true
	case x < 0:
		return W, true
	default:
		return E, true
	}
}

// Cross resolves the off-grid coordinate (x, y) on face into the state on the
// adjacent face. heading is the heading before the crossing.
func (t *Topology) Cross(face Face, x, y int, heading Heading) (State, error) {
	edge, ok := ExitEdge(x, y, t.size)
	if !ok {
		return State{}, fmt.Errorf("%w: %s (%d,%d)", ErrNotOffGrid, face, x, y)
	}
	r, ok := t.Rule(face, edge)
	if !ok {
		return State{}, fmt.Errorf("%w: no rule for %s/%s", ErrIncompleteTopology, face, edge)
	}
	return State{
		Face:    r.To,
		Cell:    r.Remap(x, y, t.size-1),
		Heading: heading.Rotate(r.Turn),
	}, nil
}

// Step moves s one cell along its heading (dir = +1) or against it
// (dir = -1), crossing onto the adjacent face when the step leaves the grid.
// Any other dir is an error.
func (t *Topology) Step(s State, dir int) (State, error) {
	if dir != 1 && dir != -1 {
		return State{}, fmt.Errorf("%w: %d", ErrInvalidStep, dir)
	}
	dx, dy := s.Heading.Delta()
	x, y := s.Cell.X+dx*dir, s.Cell.Y+dy*dir
	if (Cell{x, y}).InBounds(t.size) {
		return State{Face: s.Face, Cell: Cell{x, y}, Heading: s.Heading}, nil
	}
	return t.Cross(s.Face, x, y, s.Heading)
}

// RoundTrip is the result of crossing an edge and stepping back.
type RoundTrip struct {
	Face Face
	Edge Heading
	To   Face
	Turn int
	// OK is true when stepping backward after the crossing returns to the
	// origin cell and heading for every cell along the edge.
	OK bool
	// Failure describes the first cell that did not retrace.
	Failure string
}

// RoundTrips checks, for every rule, that driving off the edge and then
// backing up once returns the rover to where it started.
func (t *Topology) RoundTrips() []RoundTrip {
	out := make([]RoundTrip, 0, NumFaces*4)
	last := t.size - 1
	for _, f := range Faces {
		for _, edge := range Headings {
			r := t.rules[f][edge]
			rt := RoundTrip{Face: f, Edge: edge, To: r.To, Turn: r.Turn, OK: true}
			for i := 0; i < t.size; i++ {
				x, y := offGrid(edge, i, t.size)
				start := State{Face: f, Cell: Cell{clamp(x, last), clamp(y, last)}, Heading: edge}
				there, err := t.Step(start, 1)
				if err != nil {
					rt.OK, rt.Failure = false, err.Error()
					break
				}
				back, err := t.Step(there, -1)
				if err != nil {
					rt.OK, rt.Failure = false, err.Error()
					break
				}
				if back != start {
					rt.OK = false
					rt.Failure = fmt.Sprintf("%s -> %s -> %s", start, there, back)
					break
				}
			}
			out = append(out, rt)
		}
	}
	return out
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
