package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Session sources.
const (
	SourceDrive  = "drive"
	SourceScript = "script"
	SourceServe  = "serve"
	SourceReplay = "replay"
)

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Session represents a rover session in the database.
type Session struct {
	SessionID  string
	StartedAt  time.Time
	EndedAt    *time.Time
	DurationMs *int64
	Source     string
	Settings   marsrover.Settings
	Notes      *string

	// Set when the session ends.
	Final     *cube.State
	Moves     int
	Turns     int
	Blocked   int
	Crossings int
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session and returns its ID.
func (r *SessionRepository) Create(source string, s marsrover.Settings, notes string) (string, error) {
	id := uuid.New().String()
	startedAt := time.Now().UTC()

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	_, err := r.db.Exec(`
		INSERT INTO sessions (
			session_id, started_at, source, grid_size, density, seed, topology, strategy,
			start_face, start_x, start_y, start_heading, notes
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, startedAt.Format(timeFormat), source, s.GridSize, s.Density, int64(s.Seed),
		s.Topology.String(), s.Strategy.String(),
		s.Start.Face.String(), s.Start.Cell.X, s.Start.Cell.Y, s.Start.Heading.String(), notesPtr)

	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return id, nil
}

// End marks a session as complete with its final state and odometry.
func (r *SessionRepository) End(sessionID string, final cube.State, odo rover.Odometry) error {
	endedAt := time.Now().UTC()

	// Get start time to calculate duration
	var startedAtStr string
	err := r.db.QueryRow("SELECT started_at FROM sessions WHERE session_id = ?", sessionID).Scan(&startedAtStr)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to get session start time: %w", err)
	}

	startedAt, err := time.Parse(timeFormat, startedAtStr)
	if err != nil {
		return fmt.Errorf("failed to parse start time: %w", err)
	}

	durationMs := endedAt.Sub(startedAt).Milliseconds()

	_, err = r.db.Exec(`
		UPDATE sessions
		SET ended_at = ?, duration_ms = ?,
			final_face = ?, final_x = ?, final_y = ?, final_heading = ?,
			moves = ?, turns = ?, blocked = ?, crossings = ?
		WHERE session_id = ?
	`, endedAt.Format(timeFormat), durationMs,
		final.Face.String(), final.Cell.X, final.Cell.Y, final.Heading.String(),
		odo.Moves, odo.Turns, odo.Blocked, odo.Crossings, sessionID)

	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	return nil
}

const sessionColumns = `
	session_id, started_at, ended_at, duration_ms, source,
	grid_size, density, seed, topology, strategy,
	start_face, start_x, start_y, start_heading, notes,
	final_face, final_x, final_y, final_heading,
	moves, turns, blocked, crossings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s                       Session
		startedAtStr            string
		endedAtStr              sql.NullString
		seed                    int64
		topology, strategy      string
		startFace, startHeading string
		finalFace, finalHeading sql.NullString
		finalX, finalY          sql.NullInt64
	)

	err := row.Scan(
		&s.SessionID, &startedAtStr, &endedAtStr, &s.DurationMs, &s.Source,
		&s.Settings.GridSize, &s.Settings.Density, &seed, &topology, &strategy,
		&startFace, &s.Settings.Start.Cell.X, &s.Settings.Start.Cell.Y, &startHeading, &s.Notes,
		&finalFace, &finalX, &finalY, &finalHeading,
		&s.Moves, &s.Turns, &s.Blocked, &s.Crossings,
	)
	if err != nil {
		return nil, err
	}

	s.StartedAt, _ = time.Parse(timeFormat, startedAtStr)
	if endedAtStr.Valid {
		t, _ := time.Parse(timeFormat, endedAtStr.String)
		s.EndedAt = &t
	}

	s.Settings.Seed = uint64(seed)
	if s.Settings.Topology, err = cube.ParseNet(topology); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if s.Settings.Strategy, err = obstacle.ParseStrategy(strategy); err != nil {
		return nil, fmt.Errorf("failed to parse strategy: %w", err)
	}
	if s.Settings.Start.Face, err = cube.ParseFace(startFace); err != nil {
		return nil, fmt.Errorf("failed to parse start face: %w", err)
	}
	if s.Settings.Start.Heading, err = cube.ParseHeading(startHeading); err != nil {
		return nil, fmt.Errorf("failed to parse start heading: %w", err)
	}

	if finalFace.Valid && finalHeading.Valid {
		final := cube.State{Cell: cube.Cell{X: int(finalX.Int64), Y: int(finalY.Int64)}}
		if final.Face, err = cube.ParseFace(finalFace.String); err != nil {
			return nil, fmt.Errorf("failed to parse final face: %w", err)
		}
		if final.Heading, err = cube.ParseHeading(finalHeading.String); err != nil {
			return nil, fmt.Errorf("failed to parse final heading: %w", err)
		}
		s.Final = &final
	}

	return &s, nil
}

// Get retrieves a session by ID. It returns nil when the session does not exist.
func (r *SessionRepository) Get(sessionID string) (*Session, error) {
	row := r.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE session_id = ?", sessionID)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetLast retrieves the most recent session.
func (r *SessionRepository) GetLast() (*Session, error) {
	row := r.db.QueryRow("SELECT " + sessionColumns + " FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT 1")
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last session: %w", err)
	}
	return s, nil
}

// List retrieves recent sessions, newest first.
func (r *SessionRepository) List(limit int) ([]Session, error) {
	rows, err := r.db.Query("SELECT "+sessionColumns+" FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}

	return sessions, rows.Err()
}

// Delete deletes a session and all related data (cascading).
func (r *SessionRepository) Delete(sessionID string) error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Count returns the number of stored sessions.
func (r *SessionRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
