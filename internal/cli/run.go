package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/command"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/recorder"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

var (
	runExec     string
	runSteps    bool
	runJSON     bool
	runNoRecord bool
	runNotes    string
)

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run a command script",
	Long: `Run a command script against a new rover and print where it ends up.

Scripts are letters F, B, L and R or the words forward, backward, left and
right, with optional counts, separators and repeat blocks:

  # square on the front face
  repeat 4 { F 3; R }

Examples:
  rover run square.rover
  rover run --exec "FFRFF"
  echo "F 5 L F 5" | rover run -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runExec, "exec", "e", "", "Script text to run instead of a file")
	runCmd.Flags().BoolVar(&runSteps, "steps", false, "Print every step")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
	runCmd.Flags().BoolVar(&runNoRecord, "no-record", false, "Do not record a session")
	runCmd.Flags().StringVar(&runNotes, "notes", "", "Notes stored with the session")
}

// runSummary is the JSON form of a script run.
type runSummary struct {
	SessionID string             `json:"session_id,omitempty"`
	Journal   string             `json:"journal,omitempty"`
	Settings  marsrover.Settings `json:"settings"`
	Commands  int                `json:"commands"`
	Final     cube.State         `json:"final"`
	Odometry  rover.Odometry     `json:"odometry"`
	Steps     []rover.Step       `json:"steps,omitempty"`
}

func readScript(args []string) (name, src string, err error) {
	if runExec != "" {
		return "exec", runExec, nil
	}
	if len(args) == 0 {
		return "", "", fmt.Errorf("specify a script file, - for stdin, or --exec")
	}
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return "stdin", string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to read script: %w", err)
	}
	return filepath.Base(args[0]), string(data), nil
}

func runRun(cmd *cobra.Command, args []string) error {
	name, src, err := readScript(args)
	if err != nil {
		return err
	}
	cmds, err := command.ParseCommands(name, src)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	mission, err := marsrover.New(append(opts, marsrover.WithHistory(runSteps || runJSON))...)
	if err != nil {
		return err
	}

	var session *recorder.Session
	if !runNoRecord {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stateFile, err := recorder.NewDefaultStateFile()
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		session = recorder.NewSession(db, stateFile)
		dir, err := getJournalDir(cfg)
		if err != nil {
			return err
		}
		session.SetJournalDir(dir)
		notes := runNotes
		if notes == "" {
			notes = name
		}
		if _, err := session.Start(storage.SourceScript, mission, notes); err != nil {
			return err
		}
	}

	mission.Run(cmds)

	summary := runSummary{
		Settings: mission.Settings(),
		Commands: len(cmds),
		Final:    mission.State(),
		Odometry: mission.Odometry(),
	}
	if session != nil {
		summary.SessionID = session.SessionID()
		summary.Journal = session.JournalPath()
		if err := session.End(); err != nil {
			return err
		}
	}

	if runJSON {
		summary.Steps = mission.History()
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if runSteps {
		for _, s := range mission.History() {
			fmt.Println(formatStep(s))
		}
		fmt.Println()
	}

	odo := mission.Odometry()
	fmt.Printf("Start:  %s\n", mission.Initial())
	fmt.Printf("Final:  %s\n", mission.State())
	fmt.Printf("Commands: %d  Moves: %d  Turns: %d  Blocked: %d  Crossings: %d\n",
		len(cmds), odo.Moves, odo.Turns, odo.Blocked, odo.Crossings)
	if summary.SessionID != "" {
		fmt.Printf("Session: %s\n", summary.SessionID)
	}
	if summary.Journal != "" {
		fmt.Printf("Journal: %s\n", summary.Journal)
	}
	return nil
}

func formatStep(s rover.Step) string {
	out := fmt.Sprintf("%4d  %s  %s", s.Seq, s.Command, s.Result.State)
	switch {
	case s.Result.Blocked:
		out += "  blocked"
	case s.Crossed():
		out += fmt.Sprintf("  (from %s)", s.Before.Face)
	}
	return out
}
