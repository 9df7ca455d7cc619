package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iaimans/mars-rover-ai-jam/internal/analysis"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

var (
	analyzeAll   bool
	analyzeMinN  int
	analyzeMaxN  int
	analyzeTopK  int
	analyzeJSON  bool
	analyzePause int64
)

var sessionAnalyzeCmd = &cobra.Command{
	Use:   "analyze [session-id]",
	Short: "Analyze how a session was driven",
	Long: `Summarize a session's pacing, the faces it spent time on, the cells it was
repeatedly blocked by and the command sequences it repeated.

With --all, repeated sequences are mined across every recorded session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionAnalyze,
}

func init() {
	sessionCmd.AddCommand(sessionAnalyzeCmd)
	sessionAnalyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "Mine repeated sequences across all sessions")
	sessionAnalyzeCmd.Flags().IntVar(&analyzeMinN, "min-n", 3, "Shortest sequence length")
	sessionAnalyzeCmd.Flags().IntVar(&analyzeMaxN, "max-n", 8, "Longest sequence length")
	sessionAnalyzeCmd.Flags().IntVar(&analyzeTopK, "top", 5, "Sequences to report per length")
	sessionAnalyzeCmd.Flags().Int64Var(&analyzePause, "pause", 1500, "Report pauses of at least this many milliseconds")
	sessionAnalyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the analysis as JSON")
}

type sessionAnalysis struct {
	Summary *analysis.SessionSummary `json:"summary"`
	Pauses  []analysis.PauseInfo     `json:"pauses,omitempty"`
	NGrams  *analysis.NGramReport    `json:"ngrams"`
}

// sessionEntries loads a session's steps in the form analysis expects.
func sessionEntries(steps *storage.StepRepository, s *storage.Session) ([]analysis.Entry, error) {
	records, err := steps.GetBySession(s.SessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]analysis.Entry, len(records))
	for i, st := range toSteps(s.Settings.Start, records) {
		entries[i] = analysis.Entry{TsMs: records[i].TsMs, Step: st}
	}
	return entries, nil
}

func analyzeSession(steps *storage.StepRepository, s *storage.Session) (*sessionAnalysis, error) {
	entries, err := sessionEntries(steps, s)
	if err != nil {
		return nil, err
	}
	topo, err := cube.NewTopology(s.Settings.GridSize, s.Settings.Topology)
	if err != nil {
		return nil, err
	}
	return &sessionAnalysis{
		Summary: analysis.Summarize(s.SessionID, entries, analysis.BlockedTarget(topo)),
		Pauses:  analysis.AnalyzePauses(entries, analyzePause),
		NGrams:  analysis.MineNGrams(entries, analyzeMinN, analyzeMaxN, analyzeTopK),
	}, nil
}

func runSessionAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeMinN < 1 || analyzeMaxN < analyzeMinN {
		return fmt.Errorf("invalid sequence lengths %d..%d", analyzeMinN, analyzeMaxN)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions := storage.NewSessionRepository(db)
	steps := storage.NewStepRepository(db)

	if analyzeAll {
		return analyzeAcross(sessions, steps)
	}

	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	s, err := lookupSession(sessions, id)
	if err != nil {
		return err
	}
	a, err := analyzeSession(steps, s)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	printAnalysis(a)
	return nil
}

func printAnalysis(a *sessionAnalysis) {
	sum := a.Summary
	fmt.Printf("Session %s\n\n", sum.SessionID)
	fmt.Printf("Steps:      %d (%d moves, %d turns, %d blocked)\n", sum.TotalSteps, sum.Moves, sum.Turns, sum.Blocked)
	fmt.Printf("Crossings:  %d\n", sum.Crossings)
	fmt.Printf("Duration:   %s\n", formatDuration(time.Duration(sum.DurationMs)*time.Millisecond))
	fmt.Printf("Rate:       %.2f commands/s (avg %.0fms between)\n", sum.CommandsPerSecond, sum.AvgStepDurationMs)
	fmt.Printf("Blocked:    %.0f%% of move attempts\n", sum.BlockedRate*100)
	fmt.Printf("Longest pause: %s (%d over 1.5s)\n",
		formatDuration(time.Duration(sum.LongestPauseMs)*time.Millisecond), sum.PauseCountOver1500)
	if sum.Profile.MostUsed != "" {
		fmt.Printf("Most used:  %s\n", sum.Profile.MostUsed)
	}

	if len(sum.Faces) > 0 {
		fmt.Println()
		fmt.Printf("%-7s %6s %8s %8s\n", "Face", "Steps", "Blocked", "Arrived")
		for _, f := range sum.Faces {
			fmt.Printf("%-7s %6d %8d %8d\n", f.Face, f.Steps, f.Blocked, f.Arrivals)
		}
	}

	if len(sum.Hotspots) > 0 {
		fmt.Println()
		fmt.Println("Blocked repeatedly by:")
		for _, h := range sum.Hotspots {
			fmt.Printf("  %-14s %d times\n", h.Cell, h.Count)
		}
	}

	if len(a.Pauses) > 0 {
		fmt.Println()
		fmt.Printf("Pauses of %dms or more:\n", analyzePause)
		for _, p := range a.Pauses {
			fmt.Printf("  after step %-5d %s\n", p.AfterSeq, formatDuration(time.Duration(p.DurationMs)*time.Millisecond))
		}
	}

	printNGrams(a.NGrams)
}

func printNGrams(r *analysis.NGramReport) {
	fmt.Println()
	if len(r.TopNGrams) == 0 {
		fmt.Println("No repeated command sequences")
		return
	}
	fmt.Println("Repeated command sequences:")
	for _, n := range r.Lengths() {
		for _, ng := range r.TopNGrams[n] {
			fmt.Printf("  %-2d  %-20s x%d\n", n, analysis.FormatSequence(ng.Sequence), ng.Count)
		}
	}
}

func analyzeAcross(sessions *storage.SessionRepository, steps *storage.StepRepository) error {
	n, err := sessions.Count()
	if err != nil {
		return err
	}
	list, err := sessions.List(n)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	reports := make(map[string]*analysis.NGramReport, len(list))
	for i := range list {
		entries, err := sessionEntries(steps, &list[i])
		if err != nil {
			return err
		}
		reports[list[i].SessionID] = analysis.MineNGrams(entries, analyzeMinN, analyzeMaxN, analyzeTopK)
	}
	report := analysis.MineNGramsAcrossSessions(reports, analyzeTopK)

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Printf("%d sessions\n", len(list))
	printNGrams(report)
	return nil
}
