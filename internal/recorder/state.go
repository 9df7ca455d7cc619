// Package recorder records rover sessions to storage and a journal.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

// HomeEnv overrides the directory holding the state file.
const HomeEnv = storage.HomeEnv

// AppState is what the CLI remembers between runs.
type AppState struct {
	DBPath          string `json:"db_path"`
	ActiveSessionID string `json:"active_session_id,omitempty"`
	LastSessionID   string `json:"last_session_id,omitempty"`
	LastJournal     string `json:"last_journal,omitempty"`
}

// StateFile is an AppState persisted as JSON. Every mutation is written
// through immediately.
type StateFile struct {
	path  string
	state AppState
}

// DefaultStatePath returns $MARSROVER_HOME/state.json, or
// ~/.marsrover/state.json, creating the directory.
func DefaultStatePath() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".marsrover")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return filepath.Join(dir, "state.json"), nil
}

// NewStateFile opens the state at path. A missing file is an empty state;
// an unreadable one is an error.
func NewStateFile(path string) (*StateFile, error) {
	sf := &StateFile{path: path}
	if err := sf.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return sf, nil
}

// NewDefaultStateFile opens the state at DefaultStatePath.
func NewDefaultStateFile() (*StateFile, error) {
	path, err := DefaultStatePath()
	if err != nil {
		return nil, err
	}
	return NewStateFile(path)
}

// Load rereads the file.
func (sf *StateFile) Load() error {
	data, err := os.ReadFile(sf.path)
	if err != nil {
		return err
	}
	var st AppState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse %s: %w", sf.path, err)
	}
	sf.state = st
	return nil
}

// Save writes the state next to its final path and renames it into place,
// so a crash never leaves a truncated file.
func (sf *StateFile) Save() error {
	data, err := json.MarshalIndent(sf.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(sf.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), sf.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Update applies fn to the state and saves it.
func (sf *StateFile) Update(fn func(*AppState)) error {
	fn(&sf.state)
	return sf.Save()
}

// State returns a copy of the current state.
func (sf *StateFile) State() AppState { return sf.state }

// Path returns the file's location.
func (sf *StateFile) Path() string { return sf.path }

func (sf *StateFile) SetDBPath(path string) error {
	return sf.Update(func(st *AppState) { st.DBPath = path })
}

// SetActiveSession marks id as open and as the most recent session.
func (sf *StateFile) SetActiveSession(id string) error {
	return sf.Update(func(st *AppState) {
		st.ActiveSessionID = id
		st.LastSessionID = id
	})
}

func (sf *StateFile) ClearActiveSession() error {
	return sf.Update(func(st *AppState) { st.ActiveSessionID = "" })
}

func (sf *StateFile) SetLastJournal(path string) error {
	return sf.Update(func(st *AppState) { st.LastJournal = path })
}

// HasActiveSession reports whether a session was left open, for example by
// a drive that crashed.
func (sf *StateFile) HasActiveSession() bool { return sf.state.ActiveSessionID != "" }

func (sf *StateFile) ActiveSessionID() string { return sf.state.ActiveSessionID }
func (sf *StateFile) LastSessionID() string   { return sf.state.LastSessionID }
func (sf *StateFile) LastJournal() string     { return sf.state.LastJournal }
func (sf *StateFile) DBPath() string          { return sf.state.DBPath }
