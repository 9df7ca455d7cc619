// Package cli implements the command-line interface for the rover.
package cli

import (
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/iaimans/mars-rover-ai-jam/internal/config"
	"github.com/iaimans/mars-rover-ai-jam/internal/recorder"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

const version = "0.1.0"

var (
	// Global flags
	cfgPath    string
	dbPath     string
	journalDir string
	noJournal  bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "rover",
	Short: "Cube rover simulator",
	Long: `Cube rover simulator - drive a rover across the six faces of a cube.

Each face is a square grid. Driving off an edge continues onto the
neighbouring face with coordinates and heading remapped. Obstacles block
moves. Drives and scripts are recorded to a local database and to
compressed journals that can be replayed later.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
}

func init() {
	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML configuration file (default: built-in reference configuration)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file path (default: ~/.marsrover/rover.db)")
	rootCmd.PersistentFlags().StringVar(&journalDir, "journal-dir", "", "Journal directory (default: ~/.marsrover/journals)")
	rootCmd.PersistentFlags().BoolVar(&noJournal, "no-journal", false, "Do not write a journal")
}

// loadConfig reads --config and applies the path flags over it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if journalDir != "" {
		cfg.JournalDir = journalDir
	}
	return cfg, nil
}

// getDBPath returns the database path from flag, config or state file, in
// that order. Empty means the default.
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if cfg, err := config.Load(cfgPath); err == nil && cfg.DBPath != "" {
		return cfg.DBPath
	}
	if sf, err := recorder.NewDefaultStateFile(); err == nil {
		return sf.DBPath()
	}
	return ""
}

// getJournalDir returns the directory journals are written to, or "" when
// journaling is off.
func getJournalDir(cfg *config.Config) (string, error) {
	if noJournal {
		return "", nil
	}
	if cfg != nil && cfg.JournalDir != "" {
		return cfg.JournalDir, nil
	}
	return defaultJournalDir()
}

func defaultJournalDir() (string, error) {
	statePath, err := recorder.DefaultStatePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(statePath), "journals"), nil
}

func openDB() (*storage.DB, error) {
	path := getDBPath()
	var db *storage.DB
	var err error

	if path == "" {
		db, err = storage.OpenDefault()
	} else {
		db, err = storage.Open(path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
