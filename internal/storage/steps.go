package storage

import (
	"database/sql"
	"fmt"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// StepRecord represents an executed command in the database.
type StepRecord struct {
	StepID    int64
	SessionID string
	Seq       int
	TsMs      int64
	Command   rover.Command
	Success   bool
	Blocked   bool
	State     cube.State
}

// StepRepository provides CRUD operations for steps.
type StepRepository struct {
	db *DB
}

// NewStepRepository creates a new step repository.
func NewStepRepository(db *DB) *StepRepository {
	return &StepRepository{db: db}
}

const insertStep = `
	INSERT INTO steps (session_id, seq, ts_ms, command, success, blocked, face, x, y, heading)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func execStep(e execer, sessionID string, tsMs int64, s rover.Step) (sql.Result, error) {
	st := s.Result.State
	return e.Exec(insertStep, sessionID, s.Seq, tsMs, s.Command.String(),
		s.Result.Success, s.Result.Blocked,
		st.Face.String(), st.Cell.X, st.Cell.Y, st.Heading.String())
}

// Create stores one step and returns its ID. tsMs is the time since the
// session started.
func (r *StepRepository) Create(sessionID string, tsMs int64, s rover.Step) (int64, error) {
	result, err := execStep(r.db, sessionID, tsMs, s)
	if err != nil {
		return 0, fmt.Errorf("failed to create step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get step ID: %w", err)
	}

	return id, nil
}

// CreateBatch stores multiple steps in a single transaction.
func (r *StepRepository) CreateBatch(sessionID string, tsMs int64, steps []rover.Step) error {
	return r.db.Transaction(func(tx *sql.Tx) error {
		for _, s := range steps {
			if _, err := execStep(tx, sessionID, tsMs, s); err != nil {
				return fmt.Errorf("failed to create step %d: %w", s.Seq, err)
			}
		}
		return nil
	})
}

// GetBySession retrieves all steps for a session in order.
func (r *StepRepository) GetBySession(sessionID string) ([]StepRecord, error) {
	rows, err := r.db.Query(`
		SELECT step_id, session_id, seq, ts_ms, command, success, blocked, face, x, y, heading
		FROM steps
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var (
			rec           StepRecord
			command       string
			face, heading string
		)
		err := rows.Scan(&rec.StepID, &rec.SessionID, &rec.Seq, &rec.TsMs, &command,
			&rec.Success, &rec.Blocked, &face, &rec.State.Cell.X, &rec.State.Cell.Y, &heading)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if rec.Command, err = rover.ParseCommand(command); err != nil {
			return nil, fmt.Errorf("failed to parse step command: %w", err)
		}
		if rec.State.Face, err = cube.ParseFace(face); err != nil {
			return nil, fmt.Errorf("failed to parse step face: %w", err)
		}
		if rec.State.Heading, err = cube.ParseHeading(heading); err != nil {
			return nil, fmt.Errorf("failed to parse step heading: %w", err)
		}
		steps = append(steps, rec)
	}

	return steps, rows.Err()
}

// Count returns the number of steps in a session.
func (r *StepRepository) Count(sessionID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM steps WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get step count: %w", err)
	}
	return count, nil
}

// CountAll returns the number of stored steps across sessions.
func (r *StepRepository) CountAll() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM steps").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count steps: %w", err)
	}
	return count, nil
}
