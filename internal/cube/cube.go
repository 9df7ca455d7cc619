// Package cube provides the surface model of a cube whose six faces are
// square grids, and the topology that stitches the faces together.
package cube

import (
	"fmt"
	"strings"
)

// Face represents a cube face.
type Face int

const (
	Front  Face = 0
	Right  Face = 1
	Back   Face = 2
	Left   Face = 3
	Top    Face = 4
	Bottom Face = 5
)

// NumFaces is the number of faces of a cube.
const NumFaces = 6

// Faces enumerates all faces in table order.
var Faces = [NumFaces]Face{Front, Right, Back, Left, Top, Bottom}

func (f Face) String() string {
	switch f {
	case Front:
		return "FRONT"
	case Right:
		return "RIGHT"
	case Back:
		return "BACK"
	case Left:
		return "LEFT"
	case Top:
		return "TOP"
	case Bottom:
		return "BOTTOM"
	default:
		return "?"
	}
}

// Valid returns true for one of the six named faces.
func (f Face) Valid() bool {
	return f >= Front && f <= Bottom
}

// ParseFace parses a face name. Matching is case-insensitive and accepts
// the single-letter forms F, R, B, L, T (or U) and D.
func ParseFace(s string) (Face, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FRONT", "F":
		return Front, nil
	case "RIGHT", "R":
		return Right, nil
	case "BACK", "B":
		return Back, nil
	case "LEFT", "L":
		return Left, nil
	case "TOP", "T", "U", "UP":
		return Top, nil
	case "BOTTOM", "D", "DOWN":
		return Bottom, nil
	default:
		return 0, fmt.Errorf("unknown face %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Face) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid face %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Face) UnmarshalText(b []byte) error {
	face, err := ParseFace(string(b))
	if err != nil {
		return err
	}
	*f = face
	return nil
}

// Heading is a cardinal direction on a face, in clockwise order.
type Heading int

const (
	N Heading = 0
	E Heading = 1
	S Heading = 2
	W Heading = 3
)

// Headings enumerates the headings clockwise starting at N.
var Headings = [4]Heading{N, E, S, W}

func (h Heading) String() string {
	switch h {
	case N:
		return "N"
	case E:
		return "E"
	case S:
		return "S"
	case W:
		return "W"
	default:
		return "?"
	}
}

// Valid returns true for one of the four cardinal headings.
func (h Heading) Valid() bool {
	return h >= N && h <= W
}

// Rotate advances the heading k quarter turns clockwise. Negative k rotates
// counter-clockwise.
func (h Heading) Rotate(k int) Heading {
	return Heading(((int(h)+k)%4 + 4) % 4)
}

// Left returns the heading after a counter-clockwise quarter turn.
func (h Heading) Left() Heading { return h.Rotate(-1) }

// Right returns the heading after a clockwise quarter turn.
func (h Heading) Right() Heading { return h.Rotate(1) }

// Delta returns the unit step of the heading in face-local coordinates.
// (0,0) is the top-left cell, so N decreases y.
func (h Heading) Delta() (dx, dy int) {
	switch h {
	case N:
		return 0, -1
	case E:
		return 1, 0
	case S:
		return 0, 1
	case W:
		return -1, 0
	}
	return 0, 0
}

// ParseHeading parses N, E, S, W (or north, east, south, west).
func ParseHeading(s string) (Heading, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "N", "NORTH":
		return N, nil
	case "E", "EAST":
		return E, nil
	case "S", "SOUTH":
		return S, nil
	case "W", "WEST":
		return W, nil
	default:
		return 0, fmt.Errorf("unknown heading %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (h Heading) MarshalText() ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("invalid heading %d", int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Heading) UnmarshalText(b []byte) error {
	heading, err := ParseHeading(string(b))
	if err != nil {
		return err
	}
	*h = heading
	return nil
}

// Cell is a position on a face.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether the cell lies on a size×size grid.
func (c Cell) InBounds(size int) bool {
	return c.X >= 0 && c.X < size && c.Y >= 0 && c.Y < size
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// State is the full pose of a rover on the cube surface.
type State struct {
	Face    Face    `json:"face"`
	Cell    Cell    `json:"cell"`
	Heading Heading `json:"heading"`
}

// Valid reports whether the state names a real face and heading and its
// cell lies on a size×size grid.
func (s State) Valid(size int) bool {
	return s.Face.Valid() && s.Heading.Valid() && s.Cell.InBounds(size)
}

func (s State) String() string {
	return fmt.Sprintf("%s %s %s", s.Face, s.Cell, s.Heading)
}

// Obstacle is a permanently blocked cell.
type Obstacle struct {
	Face Face `json:"face"`
	X    int  `json:"x"`
	Y    int  `json:"y"`
}

func (o Obstacle) String() string {
	return fmt.Sprintf("%s(%d,%d)", o.Face, o.X, o.Y)
}
