package rover

import (
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
)

// Step is one executed command and its outcome.
type Step struct {
	Seq     int        `json:"seq"`
	Command Command    `json:"command"`
	Before  cube.State `json:"before"`
	Result  Result     `json:"result"`
}

// Crossed reports whether the step moved the rover onto another face.
func (s Step) Crossed() bool {
	return s.Result.Success && s.Result.State.Face != s.Before.Face
}

// Odometry summarises a run.
type Odometry struct {
	Moves     int `json:"moves"`
	Turns     int `json:"turns"`
	Blocked   int `json:"blocked"`
	Crossings int `json:"crossings"`
	// Visited counts committed arrivals per face, including the start.
	Visited [cube.NumFaces]int `json:"visited"`
}

// Tracker wraps a Rover and records what happens to it.
type Tracker struct {
	rover        *Rover
	initial      cube.State
	seq          int
	history      []Step
	keepHistory  bool
	odometry     Odometry
	stepCallback func(Step)
}

// NewTracker creates a tracker around r, recording history.
func NewTracker(r *Rover) *Tracker {
	t := &Tracker{
		rover:       r,
		initial:     r.State(),
		keepHistory: true,
	}
	t.odometry.Visited[r.State().Face]++
	return t
}

// SetStepCallback sets a callback that fires after every command.
func (t *Tracker) SetStepCallback(cb func(Step)) {
	t.stepCallback = cb
}

// SetHistory enables or disables history retention. Odometry is kept either way.
func (t *Tracker) SetHistory(enabled bool) {
	t.keepHistory = enabled
	if !enabled {
		t.history = nil
	}
}

// Execute runs c and records the step.
func (t *Tracker) Execute(c Command) Step {
	before := t.rover.State()
	res := t.rover.Execute(c)
	t.seq++
	step := Step{
		Seq:     t.seq,
		Command: c,
		Before:  before,
		Result:  res,
	}

	switch {
	case res.Blocked:
		t.odometry.Blocked++
	case c.IsMove():
		t.odometry.Moves++
		t.odometry.Visited[res.State.Face]++
		if step.Crossed() {
			t.odometry.Crossings++
		}
	case res.Success:
		t.odometry.Turns++
	}

	if t.keepHistory {
		t.history = append(t.history, step)
	}
	if t.stepCallback != nil {
		t.stepCallback(step)
	}
	return step
}

// ExecuteAll runs commands in order.
func (t *Tracker) ExecuteAll(cmds []Command) []Step {
	steps := make([]Step, 0, len(cmds))
	for _, c := range cmds {
		steps = append(steps, t.Execute(c))
	}
	return steps
}

// Rover returns the wrapped rover.
func (t *Tracker) Rover() *Rover { return t.rover }

// State returns the rover's current state.
func (t *Tracker) State() cube.State { return t.rover.State() }

// Initial returns the state the tracker started from.
func (t *Tracker) Initial() cube.State { return t.initial }

// History returns the recorded steps.
func (t *Tracker) History() []Step { return t.history }

// Odometry returns the counters so far.
func (t *Tracker) Odometry() Odometry { return t.odometry }
