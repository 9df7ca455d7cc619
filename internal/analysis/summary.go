// Package analysis computes statistics over recorded rover sessions.
package analysis

import (
	"sort"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Entry is one step with its time offset in the session.
type Entry struct {
	TsMs int64
	Step rover.Step
}

// SessionSummary contains statistics for a single session.
type SessionSummary struct {
	SessionID          string          `json:"session_id"`
	DurationMs         int64           `json:"duration_ms"`
	TotalSteps         int             `json:"total_steps"`
	Moves              int             `json:"moves"`
	Turns              int             `json:"turns"`
	Blocked            int             `json:"blocked"`
	Crossings          int             `json:"crossings"`
	BlockedRate        float64         `json:"blocked_rate"`
	CommandsPerSecond  float64         `json:"commands_per_second"`
	LongestPauseMs     int64           `json:"longest_pause_ms"`
	PauseCountOver1500 int             `json:"pause_count_over_1500ms"`
	AvgStepDurationMs  float64         `json:"avg_step_duration_ms"`
	Faces              []FaceStats     `json:"faces"`
	Hotspots           []Hotspot       `json:"hotspots,omitempty"`
	Profile            *CommandProfile `json:"profile"`
}

// FaceStats describes time spent on one face.
type FaceStats struct {
	Face cube.Face `json:"face"`
	// Steps counts commands issued while on the face.
	Steps   int `json:"steps"`
	Blocked int `json:"blocked"`
	// Arrivals counts crossings onto the face.
	Arrivals int `json:"arrivals"`
}

// Hotspot is a cell the rover was repeatedly blocked from entering.
type Hotspot struct {
	Cell  cube.Obstacle `json:"cell"`
	Count int           `json:"count"`
}

// PauseInfo represents a pause between commands.
type PauseInfo struct {
	AfterSeq   int   `json:"after_seq"`
	DurationMs int64 `json:"duration_ms"`
	TsMs       int64 `json:"ts_ms"`
}

// Summarize computes a session summary. blockedAt resolves the cell a
// blocked move tried to enter; it may be nil, in which case no hotspots
// are reported.
func Summarize(sessionID string, entries []Entry, blockedAt func(rover.Step) (cube.Obstacle, bool)) *SessionSummary {
	s := &SessionSummary{
		SessionID:  sessionID,
		TotalSteps: len(entries),
		Profile:    AnalyzeCommandProfile(entries),
	}
	if len(entries) > 0 {
		s.DurationMs = entries[len(entries)-1].TsMs - entries[0].TsMs
	}

	var faces [cube.NumFaces]FaceStats
	for i := range faces {
		faces[i].Face = cube.Faces[i]
	}
	hot := make(map[cube.Obstacle]int)

	for _, e := range entries {
		st := e.Step
		faces[st.Before.Face].Steps++
		switch {
		case st.Result.Blocked:
			s.Blocked++
			faces[st.Before.Face].Blocked++
			if blockedAt != nil {
				if cell, ok := blockedAt(st); ok {
					hot[cell]++
				}
			}
		case st.Command.IsMove():
			s.Moves++
		default:
			s.Turns++
		}
		if st.Crossed() {
			s.Crossings++
			faces[st.Result.State.Face].Arrivals++
		}
	}

	for _, f := range cube.Faces {
		if faces[f].Steps > 0 || faces[f].Arrivals > 0 {
			s.Faces = append(s.Faces, faces[f])
		}
	}
	for cell, n := range hot {
		if n >= 2 {
			s.Hotspots = append(s.Hotspots, Hotspot{Cell: cell, Count: n})
		}
	}
	sort.Slice(s.Hotspots, func(i, j int) bool {
		a, b := s.Hotspots[i], s.Hotspots[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Cell.String() < b.Cell.String()
	})

	if attempts := s.Moves + s.Blocked; attempts > 0 {
		s.BlockedRate = float64(s.Blocked) / float64(attempts)
	}
	s.CommandsPerSecond = CalculateRate(len(entries), s.DurationMs)
	s.LongestPauseMs = FindLongestPause(entries)
	s.PauseCountOver1500 = CountPausesOver(entries, 1500)
	s.AvgStepDurationMs = CalculateAvgStepDuration(entries)
	return s
}

// AnalyzePauses finds all pauses of at least thresholdMs.
func AnalyzePauses(entries []Entry, thresholdMs int64) []PauseInfo {
	var pauses []PauseInfo

	for i := 1; i < len(entries); i++ {
		gap := entries[i].TsMs - entries[i-1].TsMs
		if gap >= thresholdMs {
			pauses = append(pauses, PauseInfo{
				AfterSeq:   entries[i-1].Step.Seq,
				DurationMs: gap,
				TsMs:       entries[i-1].TsMs,
			})
		}
	}

	return pauses
}

// CalculateRate returns commands per second.
func CalculateRate(n int, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(n) / (float64(durationMs) / 1000.0)
}

// CalculateAvgStepDuration calculates the average time between commands.
func CalculateAvgStepDuration(entries []Entry) float64 {
	if len(entries) < 2 {
		return 0
	}

	totalGap := entries[len(entries)-1].TsMs - entries[0].TsMs
	return float64(totalGap) / float64(len(entries)-1)
}

// FindLongestPause finds the longest gap between commands.
func FindLongestPause(entries []Entry) int64 {
	var longest int64

	for i := 1; i < len(entries); i++ {
		gap := entries[i].TsMs - entries[i-1].TsMs
		if gap > longest {
			longest = gap
		}
	}

	return longest
}

// CountPausesOver counts pauses over a threshold.
func CountPausesOver(entries []Entry, thresholdMs int64) int {
	count := 0
	for i := 1; i < len(entries); i++ {
		gap := entries[i].TsMs - entries[i-1].TsMs
		if gap > thresholdMs {
			count++
		}
	}
	return count
}

// CommandProfile counts which commands are used and which follow which.
type CommandProfile struct {
	CommandCounts map[string]int `json:"command_counts"`
	MostUsed      string         `json:"most_used"`
	Pairs         map[string]int `json:"pairs"` // e.g. "FR" -> count
}

// AnalyzeCommandProfile profiles the command stream.
func AnalyzeCommandProfile(entries []Entry) *CommandProfile {
	profile := &CommandProfile{
		CommandCounts: make(map[string]int),
		Pairs:         make(map[string]int),
	}

	for i, e := range entries {
		profile.CommandCounts[e.Step.Command.String()]++

		// Track 2-command sequences
		if i > 0 {
			seq := entries[i-1].Step.Command.String() + e.Step.Command.String()
			profile.Pairs[seq]++
		}
	}

	// Ties go to the lexically first command.
	maxCount := 0
	for _, c := range []string{"B", "F", "L", "R"} {
		if n := profile.CommandCounts[c]; n > maxCount {
			maxCount = n
			profile.MostUsed = c
		}
	}

	return profile
}
