package journal

import (
	"fmt"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Divergence is a step whose replayed outcome differs from the recording.
type Divergence struct {
	Seq      int           `json:"seq"`
	Command  rover.Command `json:"command"`
	Recorded rover.Result  `json:"recorded"`
	Replayed rover.Result  `json:"replayed"`
}

func (d Divergence) String() string {
	return fmt.Sprintf("step %d %s: recorded %s success=%v blocked=%v, replayed %s success=%v blocked=%v",
		d.Seq, d.Command,
		d.Recorded.State, d.Recorded.Success, d.Recorded.Blocked,
		d.Replayed.State, d.Replayed.Success, d.Replayed.Blocked)
}

// Replayer re-executes a journal one step at a time on a fresh mission
// built from the journal's header.
type Replayer struct {
	journal     *Journal
	mission     *marsrover.Mission
	pos         int
	divergences []Divergence
}

// NewReplayer rebuilds the recorded mission.
func NewReplayer(j *Journal) (*Replayer, error) {
	s := j.Header.Settings
	m, err := marsrover.New(
		marsrover.WithGridSize(s.GridSize),
		marsrover.WithTopology(s.Topology),
		marsrover.WithStart(s.Start),
		marsrover.WithObstacles(j.Header.Obstacles),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild mission: %w", err)
	}
	return &Replayer{journal: j, mission: m}, nil
}

// Mission returns the mission being replayed.
func (r *Replayer) Mission() *marsrover.Mission { return r.mission }

// Journal returns the journal being replayed.
func (r *Replayer) Journal() *Journal { return r.journal }

// Position returns the number of steps replayed so far.
func (r *Replayer) Position() int { return r.pos }

// Done reports whether every step has been replayed.
func (r *Replayer) Done() bool { return r.pos >= len(r.journal.Steps) }

// Next replays one step. ok is false once the journal is exhausted. The
// returned divergence is nil when the replay matched the recording.
func (r *Replayer) Next() (step rover.Step, div *Divergence, ok bool) {
	if r.Done() {
		return rover.Step{}, nil, false
	}
	rec := r.journal.Steps[r.pos]
	r.pos++

	step = r.mission.Execute(rec.Step.Command)
	if step.Result != rec.Step.Result {
		d := Divergence{
			Seq:      rec.Step.Seq,
			Command:  rec.Step.Command,
			Recorded: rec.Step.Result,
			Replayed: step.Result,
		}
		r.divergences = append(r.divergences, d)
		div = &r.divergences[len(r.divergences)-1]
	}
	return step, div, true
}

// Divergences returns the mismatches seen so far.
func (r *Replayer) Divergences() []Divergence { return r.divergences }

// Report summarises a full replay.
type Report struct {
	Steps       int
	Divergences []Divergence
	Final       cube.State
	Odometry    rover.Odometry
	// FinalMatches is false when the journal's trailer disagrees with the
	// replayed final state. It is true for journals without a trailer.
	FinalMatches bool
}

// Replay re-executes every step of j.
func Replay(j *Journal) (*Report, error) {
	r, err := NewReplayer(j)
	if err != nil {
		return nil, err
	}
	for {
		if _, _, ok := r.Next(); !ok {
			break
		}
	}
	rep := &Report{
		Steps:        r.pos,
		Divergences:  r.divergences,
		Final:        r.mission.State(),
		Odometry:     r.mission.Odometry(),
		FinalMatches: true,
	}
	if j.End != nil {
		rep.FinalMatches = j.End.Final == rep.Final
	}
	return rep, nil
}
