package analysis

import (
	"testing"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// drive runs cmds on a 10x10 reference cube and stamps each step with the
// matching offset from ts.
func drive(t *testing.T, start cube.State, blocked []cube.Obstacle, cmds string, ts []int64) ([]Entry, *cube.Topology) {
	t.Helper()
	topo, err := cube.NewTopology(10, cube.NetReference)
	if err != nil {
		t.Fatal(err)
	}
	checker := rover.CheckerFunc(func(face cube.Face, x, y int) bool {
		for _, o := range blocked {
			if o.Face == face && o.X == x && o.Y == y {
				return true
			}
		}
		return false
	})
	r, err := rover.New(topo, checker, start)
	if err != nil {
		t.Fatal(err)
	}
	tr := rover.NewTracker(r)

	var entries []Entry
	for i, c := range cmds {
		step := tr.Execute(rover.Command(c))
		entries = append(entries, Entry{TsMs: ts[i], Step: step})
	}
	return entries, topo
}

func TestSummarize(t *testing.T) {
	start := cube.State{Face: cube.Front, Heading: cube.S}
	wall := cube.Obstacle{Face: cube.Front, X: 0, Y: 1}
	entries, topo := drive(t, start, []cube.Obstacle{wall}, "FFLFRF", []int64{0, 100, 2000, 2100, 2200, 2300})

	s := Summarize("s1", entries, BlockedTarget(topo))

	if s.TotalSteps != 6 || s.Moves != 2 || s.Turns != 2 || s.Blocked != 2 {
		t.Errorf("counts = %d steps, %d moves, %d turns, %d blocked", s.TotalSteps, s.Moves, s.Turns, s.Blocked)
	}
	if s.DurationMs != 2300 {
		t.Errorf("DurationMs = %d, want 2300", s.DurationMs)
	}
	if s.BlockedRate != 0.5 {
		t.Errorf("BlockedRate = %v, want 0.5", s.BlockedRate)
	}
	if s.LongestPauseMs != 1900 {
		t.Errorf("LongestPauseMs = %d, want 1900", s.LongestPauseMs)
	}
	if s.PauseCountOver1500 != 1 {
		t.Errorf("PauseCountOver1500 = %d, want 1", s.PauseCountOver1500)
	}
	if len(s.Hotspots) != 1 || s.Hotspots[0].Cell != wall || s.Hotspots[0].Count != 2 {
		t.Errorf("Hotspots = %+v", s.Hotspots)
	}
	if len(s.Faces) != 1 || s.Faces[0].Face != cube.Front || s.Faces[0].Steps != 6 || s.Faces[0].Blocked != 2 {
		t.Errorf("Faces = %+v", s.Faces)
	}
	if s.Profile.MostUsed != "F" || s.Profile.CommandCounts["F"] != 4 {
		t.Errorf("Profile = %+v", s.Profile)
	}
	if got := entries[len(entries)-1].Step.Result.State; got != (cube.State{Face: cube.Front, Cell: cube.Cell{X: 1, Y: 1}, Heading: cube.S}) {
		t.Errorf("final state = %v", got)
	}
}

func TestSummarizeCrossing(t *testing.T) {
	start := cube.State{Face: cube.Front, Cell: cube.Cell{X: 5, Y: 0}, Heading: cube.N}
	entries, _ := drive(t, start, nil, "FF", []int64{0, 500})

	s := Summarize("s2", entries, nil)
	if s.Crossings != 1 {
		t.Fatalf("Crossings = %d, want 1", s.Crossings)
	}
	var top *FaceStats
	for i := range s.Faces {
		if s.Faces[i].Face == cube.Top {
			top = &s.Faces[i]
		}
	}
	if top == nil || top.Arrivals != 1 || top.Steps != 1 {
		t.Errorf("TOP stats = %+v", top)
	}
	if s.Hotspots != nil {
		t.Errorf("Hotspots = %+v, want none without a resolver", s.Hotspots)
	}
}

func TestAnalyzePauses(t *testing.T) {
	entries := []Entry{
		{TsMs: 0, Step: rover.Step{Seq: 1}},
		{TsMs: 200, Step: rover.Step{Seq: 2}},
		{TsMs: 3200, Step: rover.Step{Seq: 3}},
		{TsMs: 3300, Step: rover.Step{Seq: 4}},
	}
	pauses := AnalyzePauses(entries, 1500)
	if len(pauses) != 1 {
		t.Fatalf("got %d pauses, want 1", len(pauses))
	}
	if pauses[0].AfterSeq != 2 || pauses[0].DurationMs != 3000 || pauses[0].TsMs != 200 {
		t.Errorf("pause = %+v", pauses[0])
	}
	if got := CalculateAvgStepDuration(entries); got != 1100 {
		t.Errorf("avg = %v, want 1100", got)
	}
	if got := CalculateRate(4, 2000); got != 2 {
		t.Errorf("rate = %v, want 2", got)
	}
	if got := CalculateRate(4, 0); got != 0 {
		t.Errorf("rate with no duration = %v, want 0", got)
	}
}

func commandEntries(cmds string) []Entry {
	entries := make([]Entry, len(cmds))
	for i, c := range cmds {
		entries[i] = Entry{TsMs: int64(i) * 10, Step: rover.Step{Seq: i + 1, Command: rover.Command(c)}}
	}
	return entries
}

func TestMineNGrams(t *testing.T) {
	report := MineNGrams(commandEntries("FRFRFRFL"), 2, 4, 5)

	pairs := report.TopNGrams[2]
	if len(pairs) != 2 || pairs[0].Sequence != "FR" || pairs[0].Count != 3 || pairs[1].Sequence != "RF" {
		t.Fatalf("n=2: %+v", pairs)
	}
	var starts []int
	for _, o := range pairs[0].Occurrences {
		starts = append(starts, o.StartIndex)
	}
	if len(starts) != 3 || starts[0] != 0 || starts[1] != 2 || starts[2] != 4 {
		t.Errorf("FR starts = %v", starts)
	}
	if pairs[0].Occurrences[1].TsMs != 20 {
		t.Errorf("FR second occurrence at %dms, want 20", pairs[0].Occurrences[1].TsMs)
	}

	triples := report.TopNGrams[3]
	if len(triples) != 2 || triples[0].Sequence != "FRF" || triples[1].Sequence != "RFR" {
		t.Errorf("n=3: %+v", triples)
	}

	quads := report.TopNGrams[4]
	if len(quads) != 2 || quads[0].Sequence != "FRFR" || quads[0].Count != 2 || quads[1].Sequence != "RFRF" {
		t.Errorf("n=4: %+v", quads)
	}

	if got := report.Lengths(); len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("Lengths = %v", got)
	}
}

func TestMineNGramsShortInput(t *testing.T) {
	report := MineNGrams(commandEntries("FR"), 3, 5, 5)
	if len(report.TopNGrams) != 0 {
		t.Errorf("got %v, want nothing", report.TopNGrams)
	}
}

func TestRollingHashMatchesFreshWindow(t *testing.T) {
	rolled := NewRollingHash(3)
	for _, c := range []byte("LFRBF") {
		rolled.Roll(c)
	}
	fresh := NewRollingHash(3)
	for _, c := range []byte("RBF") {
		fresh.Roll(c)
	}
	if !rolled.Ready() || rolled.Window() != "RBF" {
		t.Fatalf("window = %q", rolled.Window())
	}
	if rolled.Hash() != fresh.Hash() {
		t.Errorf("rolled hash %d != fresh hash %d", rolled.Hash(), fresh.Hash())
	}
}

func TestMineNGramsAcrossSessions(t *testing.T) {
	reports := map[string]*NGramReport{
		"b": MineNGrams(commandEntries("FRFR"), 2, 2, 5),
		"a": MineNGrams(commandEntries("FRFRFR"), 2, 2, 5),
	}
	agg := MineNGramsAcrossSessions(reports, 1)

	top := agg.TopNGrams[2]
	if len(top) != 1 || top[0].Sequence != "FR" || top[0].Count != 5 {
		t.Fatalf("aggregate = %+v", top)
	}
	if top[0].Occurrences[0].SessionID != "a" {
		t.Errorf("first occurrence from %q, want a", top[0].Occurrences[0].SessionID)
	}
}

func TestFormatSequence(t *testing.T) {
	if got := FormatSequence("FFR"); got != "F F R" {
		t.Errorf("FormatSequence = %q", got)
	}
}
