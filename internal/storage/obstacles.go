package storage

import (
	"database/sql"
	"fmt"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
)

// ObstacleRepository stores the obstacle set of each session.
type ObstacleRepository struct {
	db *DB
}

// NewObstacleRepository creates a new obstacle repository.
func NewObstacleRepository(db *DB) *ObstacleRepository {
	return &ObstacleRepository{db: db}
}

// SaveAll stores every obstacle for a session in a single transaction.
func (r *ObstacleRepository) SaveAll(sessionID string, list []cube.Obstacle) error {
	return r.db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO obstacles (session_id, face, x, y) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare obstacle insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range list {
			if _, err := stmt.Exec(sessionID, o.Face.String(), o.X, o.Y); err != nil {
				return fmt.Errorf("failed to store obstacle %s: %w", o, err)
			}
		}
		return nil
	})
}

// GetBySession retrieves a session's obstacles ordered by face, row and column.
func (r *ObstacleRepository) GetBySession(sessionID string) ([]cube.Obstacle, error) {
	rows, err := r.db.Query(`
		SELECT face, x, y FROM obstacles
		WHERE session_id = ?
		ORDER BY face, y, x
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get obstacles: %w", err)
	}
	defer rows.Close()

	var list []cube.Obstacle
	for rows.Next() {
		var (
			face string
			o    cube.Obstacle
		)
		if err := rows.Scan(&face, &o.X, &o.Y); err != nil {
			return nil, fmt.Errorf("failed to scan obstacle: %w", err)
		}
		if o.Face, err = cube.ParseFace(face); err != nil {
			return nil, fmt.Errorf("failed to parse obstacle face: %w", err)
		}
		list = append(list, o)
	}

	return list, rows.Err()
}
