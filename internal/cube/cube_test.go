package cube

import (
	"errors"
	"testing"
)

func TestHeadingRotateClosure(t *testing.T) {
	for _, h := range Headings {
		if got := h.Right().Left(); got != h {
			t.Errorf("%v right then left = %v", h, got)
		}
		if got := h.Left().Right(); got != h {
			t.Errorf("%v left then right = %v", h, got)
		}
		if got := h.Left().Left().Left().Left(); got != h {
			t.Errorf("%v left x4 = %v", h, got)
		}
		if got := h.Rotate(2).Rotate(2); got != h {
			t.Errorf("%v rotate 2 twice = %v", h, got)
		}
	}
}

func TestHeadingRotateOrder(t *testing.T) {
	if N.Right() != E || E.Right() != S || S.Right() != W || W.Right() != N {
		t.Error("clockwise order should be N E S W")
	}
	if N.Rotate(-1) != W {
		t.Errorf("N rotate -1 = %v, want W", N.Rotate(-1))
	}
	if E.Rotate(-6) != W {
		t.Errorf("E rotate -6 = %v, want W", E.Rotate(-6))
	}
	if S.Rotate(9) != W {
		t.Errorf("S rotate 9 = %v, want W", S.Rotate(9))
	}
}

func TestHeadingDelta(t *testing.T) {
	tests := []struct {
		h      Heading
		dx, dy int
	}{
		{N, 0, -1},
		{E, 1, 0},
		{S, 0, 1},
		{W, -1, 0},
	}
	for _, tt := range tests {
		dx, dy := tt.h.Delta()
		if dx != tt.dx || dy != tt.dy {
			t.Errorf("%v delta = (%d,%d), want (%d,%d)", tt.h, dx, dy, tt.dx, tt.dy)
		}
	}
}

func TestParseFace(t *testing.T) {
	for _, f := range Faces {
		got, err := ParseFace(f.String())
		if err != nil || got != f {
			t.Errorf("ParseFace(%q) = %v, %v", f.String(), got, err)
		}
	}
	if got, _ := ParseFace("top"); got != Top {
		t.Errorf("ParseFace(top) = %v", got)
	}
	if _, err := ParseFace("SIDE"); err == nil {
		t.Error("ParseFace(SIDE) should fail")
	}
	if Face(9).Valid() || Face(-1).Valid() {
		t.Error("out of range faces should be invalid")
	}
}

func TestFaceTextRoundTrip(t *testing.T) {
	for _, f := range Faces {
		b, err := f.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", f, err)
		}
		var back Face
		if err := back.UnmarshalText(b); err != nil || back != f {
			t.Errorf("UnmarshalText(%s) = %v, %v", b, back, err)
		}
	}
	if _, err := Face(7).MarshalText(); err == nil {
		t.Error("MarshalText should reject an invalid face")
	}
}

func TestExitEdge(t *testing.T) {
	tests := []struct {
		x, y int
		edge Heading
		ok   bool
	}{
		{5, -1, N, true},
		{5, 10, S, true},
		{-1, 5, W, true},
		{10, 5, E, true},
		{5, 5, 0, false},
		{-1, -1, 0, false},
		{10, 10, 0, false},
	}
	for _, tt := range tests {
		edge, ok := ExitEdge(tt.x, tt.y, 10)
		if ok != tt.ok || (ok && edge != tt.edge) {
			t.Errorf("ExitEdge(%d,%d) = %v,%v want %v,%v", tt.x, tt.y, edge, ok, tt.edge, tt.ok)
		}
	}
}

func TestStateValid(t *testing.T) {
	if !(State{Front, Cell{9, 9}, W}).Valid(10) {
		t.Error("corner state should be valid")
	}
	if (State{Front, Cell{10, 0}, N}).Valid(10) {
		t.Error("x=10 should be out of bounds")
	}
	if (State{Face(6), Cell{0, 0}, N}).Valid(10) {
		t.Error("face 6 should be invalid")
	}
	if (State{Front, Cell{0, 0}, Heading(4)}).Valid(10) {
		t.Error("heading 4 should be invalid")
	}
}

func TestNewTopologyRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		_, err := NewTopology(size, NetReference)
		if !errors.Is(err, ErrInvalidGridSize) {
			t.Errorf("NewTopology(%d) err = %v, want ErrInvalidGridSize", size, err)
		}
	}
}

func TestNewTopologyRejectsIncompleteTable(t *testing.T) {
	_, err := buildTopology(10, NetReference, referenceRules[:23])
	if !errors.Is(err, ErrIncompleteTopology) {
		t.Errorf("23 rules err = %v, want ErrIncompleteTopology", err)
	}

	dup := append(append([]ruleEntry{}, referenceRules...), referenceRules[0])
	if _, err := buildTopology(10, NetReference, dup); !errors.Is(err, ErrIncompleteTopology) {
		t.Errorf("duplicate rule err = %v, want ErrIncompleteTopology", err)
	}

	bad := append([]ruleEntry{}, referenceRules...)
	bad[0].rule.Remap = func(x, y, m int) Cell { return Cell{x, m + 1} }
	if _, err := buildTopology(10, NetReference, bad); !errors.Is(err, ErrIncompleteTopology) {
		t.Errorf("out of bounds remap err = %v, want ErrIncompleteTopology", err)
	}

	if _, err := NewTopology(10, Net(5)); !errors.Is(err, ErrIncompleteTopology) {
		t.Errorf("unknown net err = %v, want ErrIncompleteTopology", err)
	}
}

func TestTopologyIsTotal(t *testing.T) {
	for _, net := range []Net{NetReference, NetGeometric} {
		topo, err := NewTopology(10, net)
		if err != nil {
			t.Fatalf("NewTopology(%v): %v", net, err)
		}
		for _, f := range Faces {
			for _, edge := range Headings {
				r, ok := topo.Rule(f, edge)
				if !ok {
					t.Errorf("%v: no rule for %v/%v", net, f, edge)
					continue
				}
				if r.To == f {
					t.Errorf("%v: rule %v/%v loops onto itself", net, f, edge)
				}
			}
		}
	}
}

func TestReferenceTable(t *testing.T) {
	topo, err := NewTopology(10, NetReference)
	if err != nil {
		t.Fatal(err)
	}
	// Each entry crosses at x=3 or y=3 on the still-valid axis.
	tests := []struct {
		face Face
		x, y int
		want State
	}{
		{Front, 3, -1, State{Top, Cell{3, 9}, N}},
		{Front, 3, 10, State{Bottom, Cell{3, 0}, N}},
		{Front, -1, 3, State{Left, Cell{9, 3}, N}},
		{Front, 10, 3, State{Right, Cell{0, 3}, N}},

		{Right, 3, -1, State{Top, Cell{9, 6}, E}},
		{Right, 3, 10, State{Bottom, Cell{9, 3}, W}},
		{Right, -1, 3, State{Front, Cell{9, 3}, N}},
		{Right, 10, 3, State{Back, Cell{0, 3}, N}},

		{Back, 3, -1, State{Top, Cell{6, 0}, S}},
		{Back, 3, 10, State{Bottom, Cell{6, 9}, S}},
		{Back, -1, 3, State{Right, Cell{9, 3}, N}},
		{Back, 10, 3, State{Left, Cell{0, 3}, N}},

		{Left, 3, -1, State{Top, Cell{0, 3}, W}},
		{Left, 3, 10, State{Bottom, Cell{0, 6}, E}},
		{Left, -1, 3, State{Back, Cell{9, 3}, N}},
		{Left, 10, 3, State{Front, Cell{0, 3}, N}},

		{Top, 3, -1, State{Back, Cell{6, 0}, S}},
		{Top, 3, 10, State{Front, Cell{3, 0}, N}},
		{Top, -1, 3, State{Left, Cell{3, 0}, E}},
		{Top, 10, 3, State{Right, Cell{6, 0}, W}},

		{Bottom, 3, -1, State{Front, Cell{3, 9}, N}},
		{Bottom, 3, 10, State{Back, Cell{6, 9}, S}},
		{Bottom, -1, 3, State{Left, Cell{6, 9}, W}},
		{Bottom, 10, 3, State{Right, Cell{3, 9}, E}},
	}
	for _, tt := range tests {
		got, err := topo.Cross(tt.face, tt.x, tt.y, N)
		if err != nil {
			t.Errorf("Cross(%v,%d,%d): %v", tt.face, tt.x, tt.y, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Cross(%v,%d,%d) = %v, want %v", tt.face, tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCrossRejectsOnGridCell(t *testing.T) {
	topo, _ := NewTopology(10, NetReference)
	if _, err := topo.Cross(Front, 4, 4, N); !errors.Is(err, ErrNotOffGrid) {
		t.Errorf("Cross on grid err = %v, want ErrNotOffGrid", err)
	}
	if _, err := topo.Cross(Front, -1, -1, N); !errors.Is(err, ErrNotOffGrid) {
		t.Errorf("Cross off corner err = %v, want ErrNotOffGrid", err)
	}
}

func TestGeometricNetRoundTripsEverywhere(t *testing.T) {
	for _, size := range []int{1, 2, 5, 10} {
		topo, err := NewTopology(size, NetGeometric)
		if err != nil {
			t.Fatal(err)
		}
		for _, rt := range topo.RoundTrips() {
			if !rt.OK {
				t.Errorf("size %d: %v/%v does not retrace: %s", size, rt.Face, rt.Edge, rt.Failure)
			}
		}
	}
}

func TestReferenceNetRoundTrips(t *testing.T) {
	topo, err := NewTopology(10, NetReference)
	if err != nil {
		t.Fatal(err)
	}
	trips := topo.RoundTrips()
	if len(trips) != 24 {
		t.Fatalf("got %d round trips, want 24", len(trips))
	}
	broken := 0
	for _, rt := range trips {
		quarter := rt.Turn == 1 || rt.Turn == -1
		if rt.OK == quarter {
			t.Errorf("%v/%v turn %+d: OK=%v", rt.Face, rt.Edge, rt.Turn, rt.OK)
		}
		if !rt.OK {
			broken++
		}
	}
	if broken != 8 {
		t.Errorf("got %d edges that do not retrace, want 8", broken)
	}
}

func TestStepStaysOnFace(t *testing.T) {
	topo, _ := NewTopology(10, NetReference)
	s := State{Front, Cell{4, 4}, E}
	got, err := topo.Step(s, 1)
	if err != nil || got != (State{Front, Cell{5, 4}, E}) {
		t.Errorf("Step forward = %v, %v", got, err)
	}
	got, err = topo.Step(s, -1)
	if err != nil || got != (State{Front, Cell{3, 4}, E}) {
		t.Errorf("Step backward = %v, %v", got, err)
	}
}

func TestStepRejectsLongStrides(t *testing.T) {
	topo, _ := NewTopology(10, NetReference)
	s := State{Front, Cell{5, 0}, N}
	for _, dir := range []int{0, 2, 3, -2} {
		if got, err := topo.Step(s, dir); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("Step(%d) = %v, %v; want ErrInvalidStep", dir, got, err)
		}
	}
}
