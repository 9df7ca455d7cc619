package recorder

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/journal"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

// SessionState represents the current state of a recording session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRecording
	StateEnded
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session records one mission's steps to the database and, optionally, to
// a journal file.
type Session struct {
	db         *storage.DB
	stateFile  *StateFile
	journalDir string

	mu        sync.RWMutex
	state     SessionState
	sessionID string
	startTime time.Time
	stepCount int
	mission   *marsrover.Mission
	journal   *journal.Writer

	// Repositories
	sessionRepo  *storage.SessionRepository
	obstacleRepo *storage.ObstacleRepository
	stepRepo     *storage.StepRepository

	// Callbacks
	onStep func(rover.Step)
}

// NewSession creates a new session manager. stateFile may be nil.
func NewSession(db *storage.DB, stateFile *StateFile) *Session {
	return &Session{
		db:           db,
		stateFile:    stateFile,
		state:        StateIdle,
		sessionRepo:  storage.NewSessionRepository(db),
		obstacleRepo: storage.NewObstacleRepository(db),
		stepRepo:     storage.NewStepRepository(db),
	}
}

// SetJournalDir enables journaling into dir for sessions started afterwards.
func (s *Session) SetJournalDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journalDir = dir
}

// SetStepCallback sets the callback for recorded steps.
func (s *Session) SetStepCallback(cb func(rover.Step)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStep = cb
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SessionID returns the current session ID.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// JournalPath returns the current journal file, if any.
func (s *Session) JournalPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.journal == nil {
		return ""
	}
	return s.journal.Path()
}

// StepCount returns the number of recorded steps.
func (s *Session) StepCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepCount
}

// ElapsedMs returns the elapsed time since session start in milliseconds.
func (s *Session) ElapsedMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateRecording {
		return 0
	}
	return time.Since(s.startTime).Milliseconds()
}

// Start begins recording m. Every step m executes afterwards is recorded.
func (s *Session) Start(source string, m *marsrover.Mission, notes string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return "", ErrSessionActive
	}

	sessionID, err := s.sessionRepo.Create(source, m.Settings(), notes)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.obstacleRepo.SaveAll(sessionID, m.Obstacles()); err != nil {
		return "", fmt.Errorf("failed to store obstacles: %w", err)
	}

	s.sessionID = sessionID
	s.startTime = time.Now()
	s.stepCount = 0
	s.mission = m
	s.journal = nil
	s.state = StateRecording

	if s.journalDir != "" {
		s.openJournalLocked(source, m)
	}

	m.OnStep(s.handleStep)

	// Update state file
	if s.stateFile != nil {
		if err := s.stateFile.SetActiveSession(sessionID); err != nil {
			klog.Warningf("failed to update state file: %v", err)
		}
	}

	klog.V(1).Infof("session %s started (%s)", sessionID, source)
	return sessionID, nil
}

func (s *Session) openJournalLocked(source string, m *marsrover.Mission) {
	w, err := journal.CreateInDir(s.journalDir, journal.Header{
		SessionID: s.sessionID,
		Source:    source,
		Settings:  m.Settings(),
		Obstacles: m.Obstacles(),
	})
	if err != nil {
		// The database copy is authoritative; run without a journal.
		klog.Errorf("failed to start journal: %v", err)
		return
	}
	s.journal = w
	if s.stateFile != nil {
		if err := s.stateFile.SetLastJournal(w.Path()); err != nil {
			klog.Warningf("failed to update state file: %v", err)
		}
	}
}

func (s *Session) handleStep(step rover.Step) {
	if err := s.Record(step); err != nil {
		klog.Errorf("failed to record step %d: %v", step.Seq, err)
	}
}

// Record stores one step. Missions started with Start call it on their own.
func (s *Session) Record(step rover.Step) error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return ErrNoSession
	}

	tsMs := time.Since(s.startTime).Milliseconds()
	if _, err := s.stepRepo.Create(s.sessionID, tsMs, step); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to store step: %w", err)
	}
	s.stepCount++

	if s.journal != nil {
		if err := s.journal.WriteStep(step); err != nil {
			klog.Errorf("failed to journal step %d: %v", step.Seq, err)
		}
	}
	cb := s.onStep
	s.mu.Unlock()

	// Notify callback
	if cb != nil {
		cb(step)
	}
	return nil
}

// End ends the current session, storing the mission's final state.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return ErrNoSession
	}

	final, odo := s.mission.State(), s.mission.Odometry()
	if err := s.sessionRepo.End(s.sessionID, final, odo); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	s.state = StateEnded
	s.mission.OnStep(nil)

	if s.journal != nil {
		if err := s.journal.Finish(final, odo); err != nil {
			klog.Errorf("failed to finish journal: %v", err)
		}
	}

	// Clear state file
	if s.stateFile != nil {
		if err := s.stateFile.ClearActiveSession(); err != nil {
			klog.Warningf("failed to update state file: %v", err)
		}
	}

	klog.V(1).Infof("session %s ended after %d steps", s.sessionID, s.stepCount)
	return nil
}

// Resume reopens an interrupted session. It rebuilds the mission from the
// stored obstacles and replays the stored commands, then continues
// recording. The returned mission is positioned where the session stopped.
func (s *Session) Resume(sessionID string) (*marsrover.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return nil, ErrSessionActive
	}

	// Verify session exists and is not ended
	sess, err := s.sessionRepo.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrSessionNotFound, sessionID)
	}
	if sess.EndedAt != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, sessionID)
	}

	obstacles, err := s.obstacleRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}
	steps, err := s.stepRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}

	m, err := marsrover.New(
		marsrover.WithGridSize(sess.Settings.GridSize),
		marsrover.WithTopology(sess.Settings.Topology),
		marsrover.WithStart(sess.Settings.Start),
		marsrover.WithObstacles(obstacles),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild mission: %w", err)
	}
	for _, rec := range steps {
		got := m.Execute(rec.Command)
		if got.Result.State != rec.State {
			return nil, fmt.Errorf("%w: step %d replayed to %s, stored %s",
				ErrResumeMismatch, rec.Seq, got.Result.State, rec.State)
		}
	}

	s.sessionID = sessionID
	s.startTime = sess.StartedAt
	s.stepCount = len(steps)
	s.mission = m
	s.journal = nil
	s.state = StateRecording
	m.OnStep(s.handleStep)

	if s.stateFile != nil {
		if err := s.stateFile.SetActiveSession(sessionID); err != nil {
			klog.Warningf("failed to update state file: %v", err)
		}
	}

	klog.V(1).Infof("session %s resumed at step %d", sessionID, len(steps))
	return m, nil
}
