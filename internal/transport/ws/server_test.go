package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

func newClient(t *testing.T, inFlight time.Duration, opts ...marsrover.Option) *client {
	t.Helper()
	m, err := marsrover.New(opts...)
	require.NoError(t, err)
	return &client{mission: m, inFlight: inFlight}
}

var southFromOrigin = marsrover.WithStart(cube.State{Face: cube.Front, Heading: cube.S})

func TestClientCommand(t *testing.T) {
	c := newClient(t, 0, marsrover.WithDensity(0), southFromOrigin)

	reply := c.handle(Inbound{Type: TypeCommand, Command: "F"}, time.Now())
	res, ok := reply.(ResultMsg)
	require.True(t, ok, "reply = %#v", reply)
	assert.Equal(t, TypeResult, res.Type)
	assert.Equal(t, 1, res.Seq)
	assert.True(t, res.Success)
	assert.Equal(t, cube.Cell{X: 0, Y: 1}, res.State.Cell)

	reply = c.handle(Inbound{Type: TypeCommand, Command: "jump"}, time.Now())
	errMsg, ok := reply.(ErrorMsg)
	require.True(t, ok)
	assert.Equal(t, TypeError, errMsg.Type)
}

func TestClientBusyUntilAck(t *testing.T) {
	c := newClient(t, 100*time.Millisecond, marsrover.WithDensity(0))
	now := time.Unix(1000, 0)

	_, ok := c.handle(Inbound{Type: TypeCommand, Command: "R"}, now).(ResultMsg)
	require.True(t, ok)

	busy, ok := c.handle(Inbound{Type: TypeCommand, Command: "F"}, now.Add(10*time.Millisecond)).(ErrorMsg)
	require.True(t, ok)
	assert.Equal(t, TypeBusy, busy.Type)
	assert.Equal(t, cube.E, c.mission.State().Heading, "busy command must not execute")

	assert.Nil(t, c.handle(Inbound{Type: TypeAck}, now.Add(20*time.Millisecond)))
	_, ok = c.handle(Inbound{Type: TypeCommand, Command: "F"}, now.Add(30*time.Millisecond)).(ResultMsg)
	assert.True(t, ok, "command after ack should run")
}

func TestClientBusyExpires(t *testing.T) {
	c := newClient(t, 100*time.Millisecond, marsrover.WithDensity(0))
	now := time.Unix(1000, 0)

	c.handle(Inbound{Type: TypeCommand, Command: "F"}, now)
	_, ok := c.handle(Inbound{Type: TypeCommand, Command: "F"}, now.Add(100*time.Millisecond)).(ResultMsg)
	assert.True(t, ok, "window should have expired")
}

func TestClientBlockedMoveDoesNotSetBusy(t *testing.T) {
	c := newClient(t, time.Second, southFromOrigin,
		marsrover.WithObstacles([]cube.Obstacle{{Face: cube.Front, X: 0, Y: 1}}))
	now := time.Unix(1000, 0)

	res := c.handle(Inbound{Type: TypeCommand, Command: "F"}, now).(ResultMsg)
	assert.True(t, res.Blocked)
	_, ok := c.handle(Inbound{Type: TypeCommand, Command: "L"}, now).(ResultMsg)
	assert.True(t, ok)
}

func TestClientScript(t *testing.T) {
	c := newClient(t, 0, marsrover.WithDensity(0), southFromOrigin)

	reply := c.handle(Inbound{Type: TypeScript, Script: "repeat 3 { F } R"}, time.Now())
	msg, ok := reply.(ResultsMsg)
	require.True(t, ok, "reply = %#v", reply)
	assert.Len(t, msg.Results, 4)
	assert.Equal(t, cube.State{Face: cube.Front, Cell: cube.Cell{X: 0, Y: 3}, Heading: cube.W}, msg.State)

	errMsg, ok := c.handle(Inbound{Type: TypeScript, Script: "repeat { F"}, time.Now()).(ErrorMsg)
	require.True(t, ok)
	assert.Equal(t, TypeError, errMsg.Type)

	tooLong := "repeat 20000 { F }"
	errMsg, ok = c.handle(Inbound{Type: TypeScript, Script: tooLong}, time.Now()).(ErrorMsg)
	require.True(t, ok)
	assert.Contains(t, errMsg.Error, "limit")
}

func TestClientStateAndObstacles(t *testing.T) {
	list := []cube.Obstacle{{Face: cube.Top, X: 1, Y: 1}, {Face: cube.Back, X: 2, Y: 2}}
	c := newClient(t, 0, marsrover.WithObstacles(list))

	st := c.handle(Inbound{Type: TypeState}, time.Now()).(StateMsg)
	assert.Equal(t, c.mission.Initial(), st.State)

	all := c.handle(Inbound{Type: TypeObstacles}, time.Now()).(ObstaclesMsg)
	assert.Len(t, all.Obstacles, 2)

	top := c.handle(Inbound{Type: TypeObstacles, Face: "top"}, time.Now()).(ObstaclesMsg)
	assert.Equal(t, "TOP", top.Face)
	assert.Equal(t, []cube.Obstacle{{Face: cube.Top, X: 1, Y: 1}}, top.Obstacles)

	none := c.handle(Inbound{Type: TypeObstacles, Face: "left"}, time.Now()).(ObstaclesMsg)
	assert.NotNil(t, none.Obstacles)
	assert.Empty(t, none.Obstacles)

	_, ok := c.handle(Inbound{Type: TypeObstacles, Face: "side"}, time.Now()).(ErrorMsg)
	assert.True(t, ok)

	_, ok = c.handle(Inbound{Type: "fly"}, time.Now()).(ErrorMsg)
	assert.True(t, ok)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func TestServerSharedField(t *testing.T) {
	field := obstacle.Generate(obstacle.Params{
		Faces: cube.NumFaces, GridSize: 10, Density: 0.2, Strategy: obstacle.StrategyShuffle,
	}, obstacle.Position{Face: cube.Front}, marsrover.NewRand(3))

	db, err := storage.Open(filepath.Join(t.TempDir(), "rover.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewServer(Config{Field: field, DB: db})
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)

	var helloA, helloB HelloMsg
	readJSON(t, a, &helloA)
	readJSON(t, b, &helloB)
	assert.Equal(t, TypeHello, helloA.Type)
	assert.Equal(t, helloA.Settings.GridSize, 10)
	assert.Equal(t, cube.State{Face: cube.Front, Heading: cube.N}, helloB.State)

	require.NoError(t, a.WriteJSON(Inbound{Type: TypeCommand, Command: "R"}))
	var res ResultMsg
	readJSON(t, a, &res)
	assert.Equal(t, TypeResult, res.Type)
	assert.Equal(t, cube.E, res.State.Heading)

	// Rovers are independent.
	require.NoError(t, b.WriteJSON(Inbound{Type: TypeState}))
	var st StateMsg
	readJSON(t, b, &st)
	assert.Equal(t, cube.N, st.State.Heading)

	// Both see the same field.
	require.NoError(t, a.WriteJSON(Inbound{Type: TypeObstacles}))
	require.NoError(t, b.WriteJSON(Inbound{Type: TypeObstacles}))
	var oa, ob ObstaclesMsg
	readJSON(t, a, &oa)
	readJSON(t, b, &ob)
	assert.Len(t, oa.Obstacles, field.Len())
	assert.ElementsMatch(t, oa.Obstacles, ob.Obstacles)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var e ErrorMsg
	readJSON(t, a, &e)
	assert.Equal(t, TypeError, e.Type)

	a.Close()
	b.Close()
	require.Eventually(t, func() bool { return s.Active() == 0 }, 5*time.Second, 10*time.Millisecond)

	sessions, err := storage.NewSessionRepository(db).List(10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, sess := range sessions {
		assert.Equal(t, storage.SourceServe, sess.Source)
		assert.NotNil(t, sess.EndedAt)
	}
}

func TestServerConnectionLimit(t *testing.T) {
	s := NewServer(Config{Options: []marsrover.Option{marsrover.WithSeed(1)}, MaxConnections: 1})
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	first := dial(t, srv)
	var hello HelloMsg
	readJSON(t, first, &hello)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestServerHealth(t *testing.T) {
	s := NewServer(Config{Options: []marsrover.Option{marsrover.WithSeed(1)}})
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
