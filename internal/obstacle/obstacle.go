// Package obstacle generates and queries the set of blocked cells spread
// across the faces of the cube.
package obstacle

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
)

// Reference configuration.
const (
	DefaultFaces    = cube.NumFaces
	DefaultGridSize = 10
	DefaultDensity  = 0.10

	// attemptFactor bounds rejection sampling to attemptFactor × target draws.
	attemptFactor = 10

	// autoShuffleAbove is the density above which StrategyAuto stops using
	// rejection sampling.
	autoShuffleAbove = 0.5
)

// Strategy selects how cells are drawn.
type Strategy int

const (
	// StrategyAuto uses rejection sampling up to a density of 0.5 and
	// shuffling above it.
	StrategyAuto Strategy = iota

	// StrategyRejection draws uniform cells, skipping the start cell and
	// repeats, until the target is met or the attempt budget runs out.
	StrategyRejection

	// StrategyShuffle shuffles every candidate cell and takes the first
	// target cells. The count is always exact.
	StrategyShuffle
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyRejection:
		return "rejection"
	case StrategyShuffle:
		return "shuffle"
	default:
		return "?"
	}
}

// ParseStrategy parses "auto", "rejection" or "shuffle".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "rejection":
		return StrategyRejection, nil
	case "shuffle":
		return StrategyShuffle, nil
	default:
		return 0, fmt.Errorf("unknown obstacle strategy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s.String() == "?" {
		return nil, fmt.Errorf("unknown obstacle strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Params configures generation.
type Params struct {
	Faces    int
	GridSize int
	Density  float64
	Strategy Strategy
}

// DefaultParams returns the reference configuration: 6 faces of 10×10 at
// 10% density.
func DefaultParams() Params {
	return Params{
		Faces:    DefaultFaces,
		GridSize: DefaultGridSize,
		Density:  DefaultDensity,
		Strategy: StrategyAuto,
	}
}

// Target returns floor(faces × size² × density), capped to the number of
// cells other than the start cell. A non-finite density targets nothing.
func (p Params) Target() int {
	if p.Faces <= 0 || p.GridSize <= 0 || math.IsNaN(p.Density) || math.IsInf(p.Density, 0) || p.Density <= 0 {
		return 0
	}
	total := p.Faces * p.GridSize * p.GridSize
	// The epsilon keeps 6*100*0.1 from flooring to 59.
	n := int(math.Floor(float64(total)*p.Density + 1e-9))
	if n > total-1 {
		n = total - 1
	}
	return n
}

// Position identifies a single cell on the cube.
type Position = cube.Obstacle

// Field is an immutable set of blocked cells.
type Field struct {
	size      int
	faces     int
	cells     map[cube.Obstacle]struct{}
	byFace    [cube.NumFaces][]cube.Obstacle
	target    int
	attempts  int
	strategy  Strategy
	startCell cube.Obstacle
}

// Generate draws a field for p, never blocking start. Draws come from rng;
// a nil rng uses a randomly seeded source.
//
// With StrategyRejection the field may hold fewer than Target cells when the
// attempt budget (10 × target) is exhausted. That shortfall is an accepted
// outcome of the reference algorithm and is reported by Shortfall.
func Generate(p Params, start Position, rng *rand.Rand) *Field {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if p.Faces <= 0 || p.Faces > cube.NumFaces {
		p.Faces = cube.NumFaces
	}
	f := newField(p.GridSize, p.Faces, start)
	f.target = p.Target()

	strategy := p.Strategy
	if strategy == StrategyAuto {
		strategy = StrategyRejection
		if p.Density > autoShuffleAbove {
			strategy = StrategyShuffle
		}
	}
	f.strategy = strategy

	switch strategy {
	case StrategyShuffle:
		f.shuffle(rng)
	default:
		f.reject(rng)
	}
	f.index()
	return f
}

// FromObstacles rebuilds a field from a stored list. It rejects duplicates,
// cells off a size×size grid, and the start cell.
func FromObstacles(size int, list []cube.Obstacle, start Position) (*Field, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", cube.ErrInvalidGridSize, size)
	}
	f := newField(size, cube.NumFaces, start)
	for _, o := range list {
		if !o.Face.Valid() || !(cube.Cell{X: o.X, Y: o.Y}).InBounds(size) {
			return nil, fmt.Errorf("%w: %s", ErrOutOfRange, o)
		}
		if o == start {
			return nil, fmt.Errorf("%w: %s", ErrStartBlocked, o)
		}
		if _, dup := f.cells[o]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, o)
		}
		f.cells[o] = struct{}{}
	}
	f.target = len(f.cells)
	f.index()
	return f, nil
}

// Empty returns a field with no obstacles.
func Empty(size int) *Field {
	f := newField(size, cube.NumFaces, cube.Obstacle{Face: -1})
	f.index()
	return f
}

func newField(size, faces int, start Position) *Field {
	return &Field{
		size:      size,
		faces:     faces,
		cells:     make(map[cube.Obstacle]struct{}),
		startCell: start,
	}
}

func (f *Field) reject(rng *rand.Rand) {
	budget := attemptFactor * f.target
	for len(f.cells) < f.target && f.attempts < budget {
		f.attempts++
		o := cube.Obstacle{
			Face: cube.Face(rng.IntN(f.faces)),
			X:    rng.IntN(f.size),
			Y:    rng.IntN(f.size),
		}
		if o == f.startCell {
			continue
		}
		if _, dup := f.cells[o]; dup {
			continue
		}
		f.cells[o] = struct{}{}
	}
}

func (f *Field) shuffle(rng *rand.Rand) {
	all := make([]cube.Obstacle, 0, f.faces*f.size*f.size)
	for face := 0; face < f.faces; face++ {
		for y := 0; y < f.size; y++ {
			for x := 0; x < f.size; x++ {
				o := cube.Obstacle{Face: cube.Face(face), X: x, Y: y}
				if o != f.startCell {
					all = append(all, o)
				}
			}
		}
	}
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	n := f.target
	if n > len(all) {
		n = len(all)
	}
	f.attempts = n
	for _, o := range all[:n] {
		f.cells[o] = struct{}{}
	}
}

func (f *Field) index() {
	for o := range f.cells {
		f.byFace[o.Face] = append(f.byFace[o.Face], o)
	}
}

// HasObstacle reports whether (face, x, y) is blocked. Invalid faces and
// out-of-range coordinates are never blocked.
func (f *Field) HasObstacle(face cube.Face, x, y int) bool {
	if !face.Valid() || x < 0 || y < 0 || x >= f.size || y >= f.size {
		return false
	}
	_, ok := f.cells[cube.Obstacle{Face: face, X: x, Y: y}]
	return ok
}

// All returns every obstacle. The order is unspecified.
func (f *Field) All() []cube.Obstacle {
	out := make([]cube.Obstacle, 0, len(f.cells))
	for _, face := range cube.Faces {
		out = append(out, f.byFace[face]...)
	}
	return out
}

// OnFace returns the obstacles on one face. The order is unspecified.
func (f *Field) OnFace(face cube.Face) []cube.Obstacle {
	if !face.Valid() {
		return nil
	}
	return append([]cube.Obstacle(nil), f.byFace[face]...)
}

// Len returns the number of obstacles.
func (f *Field) Len() int { return len(f.cells) }

// Size returns the grid dimension.
func (f *Field) Size() int { return f.size }

// Target returns the count generation aimed for.
func (f *Field) Target() int { return f.target }

// Attempts returns the number of draws generation used.
func (f *Field) Attempts() int { return f.attempts }

// Strategy returns the strategy that produced the field.
func (f *Field) Strategy() Strategy { return f.strategy }

// Shortfall returns how many obstacles generation failed to place.
func (f *Field) Shortfall() int { return f.target - len(f.cells) }
