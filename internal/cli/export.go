package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/command"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/journal"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

var (
	exportSessionID string
	exportFormat    string
	exportOutput    string
)

var sessionExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a session",
	Long: `Export a session's commands as a script, its steps as JSON, or the
whole session as a journal that 'rover replay' can read.

Examples:
  rover session export
  rover session export --id <session_id> --format json
  rover session export --format script -o drive.rover
  rover session export --format journal -o drive.jsonl.zst`,
	RunE: runSessionExport,
}

func init() {
	sessionCmd.AddCommand(sessionExportCmd)
	sessionExportCmd.Flags().StringVar(&exportSessionID, "id", "", "Session ID to export (default: the last session)")
	sessionExportCmd.Flags().StringVar(&exportFormat, "format", "script", "Export format (script, json, journal)")
	sessionExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout; required for journal)")
}

func stepCommands(steps []storage.StepRecord) []rover.Command {
	out := make([]rover.Command, len(steps))
	for i, s := range steps {
		out[i] = s.Command
	}
	return out
}

// toSteps rebuilds rover steps from stored rows; each step starts where the
// previous one ended.
func toSteps(start cube.State, records []storage.StepRecord) []rover.Step {
	out := make([]rover.Step, len(records))
	before := start
	for i, r := range records {
		out[i] = rover.Step{
			Seq:     r.Seq,
			Command: r.Command,
			Before:  before,
			Result:  rover.Result{Success: r.Success, Blocked: r.Blocked, State: r.State},
		}
		before = r.State
	}
	return out
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := lookupSession(storage.NewSessionRepository(db), exportSessionID)
	if err != nil {
		return err
	}

	records, err := storage.NewStepRepository(db).GetBySession(s.SessionID)
	if err != nil {
		return fmt.Errorf("failed to get steps: %w", err)
	}

	var output string

	switch strings.ToLower(exportFormat) {
	case "script", "txt":
		header := fmt.Sprintf("# session %s\n# start %s, %dx%d %s topology\n",
			s.SessionID, s.Settings.Start, s.Settings.GridSize, s.Settings.GridSize, s.Settings.Topology)
		output = header + command.Format(stepCommands(records), 60)

	case "json":
		type sessionJSON struct {
			SessionID string             `json:"session_id"`
			Source    string             `json:"source"`
			Settings  marsrover.Settings `json:"settings"`
			Final     *cube.State        `json:"final,omitempty"`
			Steps     []rover.Step       `json:"steps"`
			Obstacles []cube.Obstacle    `json:"obstacles"`
		}
		obstacles, err := storage.NewObstacleRepository(db).GetBySession(s.SessionID)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(sessionJSON{
			SessionID: s.SessionID,
			Source:    s.Source,
			Settings:  s.Settings,
			Final:     s.Final,
			Steps:     toSteps(s.Settings.Start, records),
			Obstacles: obstacles,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		output = string(data)

	case "journal":
		if exportOutput == "" {
			return fmt.Errorf("journal export needs --output")
		}
		return exportJournal(db, s, records)

	default:
		return fmt.Errorf("unknown format: %s (use script, json or journal)", exportFormat)
	}

	if exportOutput == "" {
		fmt.Println(output)
		return nil
	}

	dir := filepath.Dir(exportOutput)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(exportOutput, []byte(output+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Printf("Exported %d steps to %s\n", len(records), exportOutput)
	return nil
}

func exportJournal(db *storage.DB, s *storage.Session, records []storage.StepRecord) error {
	obstacles, err := storage.NewObstacleRepository(db).GetBySession(s.SessionID)
	if err != nil {
		return err
	}

	path := exportOutput
	if !strings.HasSuffix(path, journal.Ext) {
		path += journal.Ext
	}
	w, err := journal.Create(path, journal.Header{
		SessionID: s.SessionID,
		Source:    s.Source,
		Settings:  s.Settings,
		Obstacles: obstacles,
	})
	if err != nil {
		return err
	}

	steps := toSteps(s.Settings.Start, records)
	for _, st := range steps {
		if err := w.WriteStep(st); err != nil {
			w.Close()
			return err
		}
	}

	if s.Final != nil {
		odo := rover.Odometry{Moves: s.Moves, Turns: s.Turns, Blocked: s.Blocked, Crossings: s.Crossings}
		if err := w.Finish(*s.Final, odo); err != nil {
			return err
		}
	} else if err := w.Close(); err != nil {
		return err
	}

	fmt.Printf("Exported %d steps to %s\n", len(steps), path)
	return nil
}
