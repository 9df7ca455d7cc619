package ws

import (
	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Message types.
const (
	// Client to server.
	TypeCommand   = "command"
	TypeScript    = "script"
	TypeState     = "state"
	TypeObstacles = "obstacles"
	TypeAck       = "ack"

	// Server to client.
	TypeHello   = "hello"
	TypeResult  = "result"
	TypeResults = "results"
	TypeError   = "error"
	TypeBusy    = "busy"
)

// Inbound is any client message. Fields apply per type.
type Inbound struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Script  string `json:"script,omitempty"`
	Face    string `json:"face,omitempty"`
}

// HelloMsg is sent once on connect with the mission settings and the
// rover's starting state.
type HelloMsg struct {
	Type     string             `json:"type"`
	Settings marsrover.Settings `json:"settings"`
	State    cube.State         `json:"state"`
	// InFlightMs is how long a result keeps the rover busy without an ack.
	InFlightMs int64 `json:"in_flight_ms"`
}

// ResultMsg reports one executed command.
type ResultMsg struct {
	Type    string        `json:"type"`
	Seq     int           `json:"seq"`
	Command rover.Command `json:"command"`
	Success bool          `json:"success"`
	Blocked bool          `json:"blocked"`
	State   cube.State    `json:"state"`
}

// ResultsMsg reports every command of a script, in order, and the state
// after the last one.
type ResultsMsg struct {
	Type    string      `json:"type"`
	Results []ResultMsg `json:"results"`
	State   cube.State  `json:"state"`
}

// StateMsg answers a state request.
type StateMsg struct {
	Type     string         `json:"type"`
	State    cube.State     `json:"state"`
	Odometry rover.Odometry `json:"odometry"`
}

// ObstaclesMsg lists the shared field's obstacles, on one face when Face
// is set. Obstacles is never null.
type ObstaclesMsg struct {
	Type      string          `json:"type"`
	Face      string          `json:"face,omitempty"`
	Obstacles []cube.Obstacle `json:"obstacles"`
}

// ErrorMsg reports a rejected message. Type is TypeBusy when a command
// arrived while the previous move was still in flight.
type ErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func resultMsg(s rover.Step) ResultMsg {
	return ResultMsg{
		Type:    TypeResult,
		Seq:     s.Seq,
		Command: s.Command,
		Success: s.Result.Success,
		Blocked: s.Result.Blocked,
		State:   s.Result.State,
	}
}
