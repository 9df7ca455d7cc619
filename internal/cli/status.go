package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iaimans/mars-rover-ai-jam/internal/recorder"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and recording status",
	Long:  `Display the active configuration, the database and journal locations, session counts, and any unfinished session.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	stateFile, err := recorder.NewDefaultStateFile()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	state := stateFile.State()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Cube Rover Status")
	fmt.Println("=================")
	fmt.Println()

	// Configuration
	source := "built-in defaults"
	if cfgPath != "" {
		source = cfgPath
	}
	fmt.Printf("Config: %s\n", source)
	seed := "random"
	if cfg.Seed != 0 {
		seed = fmt.Sprintf("%d", cfg.Seed)
	}
	fmt.Printf("  %dx%d faces, density %.2f (%s), %s topology, seed %s\n",
		cfg.GridSize, cfg.GridSize, cfg.Density, cfg.Strategy, cfg.Topology, seed)
	fmt.Printf("  start %s (%d,%d) heading %s\n", cfg.Start.Face, cfg.Start.X, cfg.Start.Y, cfg.Start.Heading)
	fmt.Println()

	// Database info
	path := getDBPath()
	if path == "" {
		path, _ = storage.DefaultDBPath()
	}
	fmt.Printf("Database: %s\n", path)

	db, err := openDB()
	if err == nil {
		defer db.Close()
		version, _ := db.CurrentVersion()
		fmt.Printf("Schema version: %d\n", version)

		sessionRepo := storage.NewSessionRepository(db)
		if last, _ := sessionRepo.GetLast(); last != nil {
			fmt.Printf("Last session: %s (%s, %s)\n", last.SessionID, last.Source, last.StartedAt.Local().Format(time.RFC3339))
		}
		total, _ := sessionRepo.Count()
		steps, _ := storage.NewStepRepository(db).CountAll()
		fmt.Printf("Total sessions: %d (%d steps)\n", total, steps)
	} else {
		fmt.Printf("Database error: %v\n", err)
	}
	fmt.Println()

	// Journals
	if dir, err := getJournalDir(cfg); err == nil && dir != "" {
		fmt.Printf("Journals: %s\n", dir)
	} else {
		fmt.Println("Journals: off")
	}
	if state.LastJournal != "" {
		fmt.Printf("Last journal: %s\n", state.LastJournal)
	}
	fmt.Println()

	// Active session
	if state.ActiveSessionID != "" {
		fmt.Printf("Unfinished session: %s\n", state.ActiveSessionID)
		fmt.Println("  (Use 'rover drive --resume active' to continue it)")
	} else {
		fmt.Println("No unfinished session")
	}

	return nil
}
