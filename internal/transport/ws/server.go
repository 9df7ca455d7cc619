// Package ws lets websocket clients drive rovers over a shared obstacle
// field. Each connection owns one rover.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/command"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/recorder"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

// MaxScriptCommands bounds one script message.
const MaxScriptCommands = 10000

// Config configures a Server.
type Config struct {
	// Field is shared by every connection.
	Field *obstacle.Field
	// Options build each connection's mission; the field is added to them.
	Options []marsrover.Option
	// InFlight is how long a result keeps the rover busy until the client
	// acknowledges it. Zero disables the busy check.
	InFlight time.Duration
	// MaxConnections caps open connections; zero is unlimited.
	MaxConnections int
	// DB, when set, records each connection as a session.
	DB *storage.DB
}

// Server gives every websocket connection its own rover on one shared
// obstacle field.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	active   atomic.Int32
	now      func() time.Time
}

// NewServer returns a server for cfg. When cfg.Field is nil each
// connection's mission generates its own field from cfg.Options.
func NewServer(cfg Config) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		now: time.Now,
	}
}

// Mux serves the websocket endpoint on /ws and a health check on /healthz.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(rw, "ok %d\n", s.active.Load())
	})
	return mux
}

// Active returns the number of open connections.
func (s *Server) Active() int { return int(s.active.Load()) }

// Handler upgrades a request to a websocket and serves one rover on it
// until the client disconnects. Requests over MaxConnections get 503.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if n := s.active.Add(1); s.cfg.MaxConnections > 0 && int(n) > s.cfg.MaxConnections {
			s.active.Add(-1)
			http.Error(rw, "too many rovers", http.StatusServiceUnavailable)
			return
		}
		defer s.active.Add(-1)

		m, err := s.newMission()
		if err != nil {
			klog.Errorf("ws: %v", err)
			http.Error(rw, "failed to land rover", http.StatusInternalServerError)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		klog.V(1).Infof("ws: %s connected", r.RemoteAddr)

		if s.cfg.DB != nil {
			rec := recorder.NewSession(s.cfg.DB, nil)
			if _, err := rec.Start(storage.SourceServe, m, r.RemoteAddr); err != nil {
				klog.Errorf("ws: failed to record %s: %v", r.RemoteAddr, err)
			} else {
				defer func() {
					if err := rec.End(); err != nil {
						klog.Errorf("ws: failed to end session: %v", err)
					}
				}()
			}
		}

		c := &client{mission: m, inFlight: s.cfg.InFlight}
		if err := writeJSON(conn, c.hello()); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, 16)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var in Inbound
			var reply any
			if err := json.Unmarshal(msg, &in); err != nil {
				reply = ErrorMsg{Type: TypeError, Error: "malformed message"}
			} else {
				reply = c.handle(in, s.now())
			}
			if reply == nil {
				continue
			}
			b, err := json.Marshal(reply)
			if err != nil {
				klog.Errorf("ws: failed to marshal reply: %v", err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			default:
				// The client is not reading; drop it.
				klog.Warningf("ws: %s send queue full", r.RemoteAddr)
				cancel()
			}
			if ctx.Err() != nil {
				break
			}
		}

		cancel()
		<-done
		odo := m.Odometry()
		klog.V(1).Infof("ws: %s disconnected after %d moves, %d turns", r.RemoteAddr, odo.Moves, odo.Turns)
	}
}

func (s *Server) newMission() (*marsrover.Mission, error) {
	opts := append([]marsrover.Option(nil), s.cfg.Options...)
	if s.cfg.Field != nil {
		opts = append(opts, marsrover.WithField(s.cfg.Field))
	}
	// Connections can run for hours; odometry is enough.
	opts = append(opts, marsrover.WithHistory(false))
	return marsrover.New(opts...)
}

// client is one connection's rover and its in-flight flag. The flag lives
// here, with the presentation, and never in the rover.
type client struct {
	mission   *marsrover.Mission
	inFlight  time.Duration
	busy      bool
	busyUntil time.Time
}

func (c *client) hello() HelloMsg {
	return HelloMsg{
		Type:       TypeHello,
		Settings:   c.mission.Settings(),
		State:      c.mission.State(),
		InFlightMs: c.inFlight.Milliseconds(),
	}
}

func (c *client) isBusy(now time.Time) bool {
	return c.busy && now.Before(c.busyUntil)
}

func (c *client) markBusy(now time.Time) {
	if c.inFlight > 0 {
		c.busy = true
		c.busyUntil = now.Add(c.inFlight)
	}
}

// handle executes one message and returns the reply, or nil for none.
func (c *client) handle(in Inbound, now time.Time) any {
	switch in.Type {
	case TypeCommand:
		if c.isBusy(now) {
			return ErrorMsg{Type: TypeBusy, Error: "previous command still in flight"}
		}
		cmd, err := rover.ParseCommand(in.Command)
		if err != nil {
			return ErrorMsg{Type: TypeError, Error: err.Error()}
		}
		step := c.mission.Execute(cmd)
		if step.Result.Success {
			c.markBusy(now)
		}
		return resultMsg(step)

	case TypeScript:
		if c.isBusy(now) {
			return ErrorMsg{Type: TypeBusy, Error: "previous command still in flight"}
		}
		cmds, err := command.ParseCommands("script", in.Script)
		if err != nil {
			return ErrorMsg{Type: TypeError, Error: err.Error()}
		}
		if len(cmds) > MaxScriptCommands {
			return ErrorMsg{Type: TypeError, Error: fmt.Sprintf("script has %d commands, limit %d", len(cmds), MaxScriptCommands)}
		}
		msg := ResultsMsg{Type: TypeResults, Results: make([]ResultMsg, 0, len(cmds))}
		moved := false
		for _, step := range c.mission.Run(cmds) {
			msg.Results = append(msg.Results, resultMsg(step))
			moved = moved || step.Result.Success
		}
		if moved {
			c.markBusy(now)
		}
		msg.State = c.mission.State()
		return msg

	case TypeState:
		return StateMsg{Type: TypeState, State: c.mission.State(), Odometry: c.mission.Odometry()}

	case TypeObstacles:
		if in.Face == "" {
			return ObstaclesMsg{Type: TypeObstacles, Obstacles: c.mission.Obstacles()}
		}
		face, err := cube.ParseFace(in.Face)
		if err != nil {
			return ErrorMsg{Type: TypeError, Error: err.Error()}
		}
		list := c.mission.Field().OnFace(face)
		if list == nil {
			list = []cube.Obstacle{}
		}
		return ObstaclesMsg{Type: TypeObstacles, Face: face.String(), Obstacles: list}

	case TypeAck:
		c.busy = false
		return nil

	default:
		return ErrorMsg{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", in.Type)}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
