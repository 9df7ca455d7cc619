package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "rover.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSettings() marsrover.Settings {
	return marsrover.Settings{
		GridSize: 10,
		Density:  0.1,
		Seed:     1<<63 + 5,
		Start:    cube.State{Face: cube.Left, Cell: cube.Cell{X: 2, Y: 7}, Heading: cube.W},
		Topology: cube.NetGeometric,
		Strategy: obstacle.StrategyShuffle,
	}
}

func TestOpenMigrates(t *testing.T) {
	db := openTestDB(t)
	v, err := db.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)

	// Re-applying is a no-op.
	require.NoError(t, db.MigrateUp())
	v, err = db.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)
}

func TestRefusesNewerSchema(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", LatestVersion()+1)
	require.NoError(t, err)
	assert.ErrorIs(t, db.MigrateUp(), ErrSchemaTooNew)
}

func TestMigrationsOrdered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version, m.name)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.db")
	db, err := Open(path)
	require.NoError(t, err)
	id, err := NewSessionRepository(db).Create(SourceScript, testSettings(), "")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	s, err := NewSessionRepository(db).Get(id)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, path, db.Path())
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionRepository(db)

	id, err := sessions.Create(SourceDrive, testSettings(), "first light")
	require.NoError(t, err)

	s, err := sessions.Get(id)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, SourceDrive, s.Source)
	assert.Equal(t, testSettings(), s.Settings)
	require.NotNil(t, s.Notes)
	assert.Equal(t, "first light", *s.Notes)
	assert.Nil(t, s.EndedAt)
	assert.Nil(t, s.Final)

	final := cube.State{Face: cube.Top, Cell: cube.Cell{X: 1, Y: 1}, Heading: cube.S}
	odo := rover.Odometry{Moves: 12, Turns: 3, Blocked: 2, Crossings: 1}
	require.NoError(t, sessions.End(id, final, odo))

	s, err = sessions.Get(id)
	require.NoError(t, err)
	require.NotNil(t, s.EndedAt)
	require.NotNil(t, s.DurationMs)
	require.NotNil(t, s.Final)
	assert.Equal(t, final, *s.Final)
	assert.Equal(t, 12, s.Moves)
	assert.Equal(t, 3, s.Turns)
	assert.Equal(t, 2, s.Blocked)
	assert.Equal(t, 1, s.Crossings)

	assert.ErrorIs(t, sessions.End("missing", final, odo), ErrSessionNotFound)

	missing, err := sessions.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListAndLast(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionRepository(db)

	last, err := sessions.GetLast()
	require.NoError(t, err)
	assert.Nil(t, last)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := sessions.Create(SourceScript, testSettings(), "")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	list, err := sessions.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].SessionID)

	last, err = sessions.GetLast()
	require.NoError(t, err)
	assert.Equal(t, ids[2], last.SessionID)

	n, err := sessions.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestObstaclesAndSteps(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionRepository(db)
	obstacles := NewObstacleRepository(db)
	steps := NewStepRepository(db)

	m, err := marsrover.New(marsrover.WithSeed(11), marsrover.WithDensity(0.2))
	require.NoError(t, err)
	id, err := sessions.Create(SourceScript, m.Settings(), "")
	require.NoError(t, err)

	require.NoError(t, obstacles.SaveAll(id, m.Obstacles()))
	stored, err := obstacles.GetBySession(id)
	require.NoError(t, err)
	assert.ElementsMatch(t, m.Obstacles(), stored)

	executed := m.Run([]rover.Command{rover.Forward, rover.TurnRight, rover.Forward, rover.Backward})
	_, err = steps.Create(id, 0, executed[0])
	require.NoError(t, err)
	require.NoError(t, steps.CreateBatch(id, 5, executed[1:]))

	records, err := steps.GetBySession(id)
	require.NoError(t, err)
	require.Len(t, records, len(executed))
	for i, rec := range records {
		assert.Equal(t, executed[i].Seq, rec.Seq)
		assert.Equal(t, executed[i].Command, rec.Command)
		assert.Equal(t, executed[i].Result.Success, rec.Success)
		assert.Equal(t, executed[i].Result.Blocked, rec.Blocked)
		assert.Equal(t, executed[i].Result.State, rec.State)
	}

	n, err := steps.Count(id)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Duplicate sequence numbers are rejected.
	_, err = steps.Create(id, 9, executed[0])
	assert.Error(t, err)

	// Deleting a session cascades.
	require.NoError(t, sessions.Delete(id))
	stored, err = obstacles.GetBySession(id)
	require.NoError(t, err)
	assert.Empty(t, stored)
	total, err := steps.CountAll()
	require.NoError(t, err)
	assert.Zero(t, total)
}
