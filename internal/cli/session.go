package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iaimans/mars-rover-ai-jam/internal/command"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

var (
	listLimit   int
	showSteps   bool
	deleteForce bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage recorded sessions",
	Long:  `Commands for listing, inspecting, exporting and deleting recorded sessions.`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show session details",
	Long:  `Show a session's settings, outcome and, with --steps, every step. Defaults to the last session.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionShow,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.AddCommand(sessionListCmd)
	sessionListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of sessions to show")

	sessionCmd.AddCommand(sessionShowCmd)
	sessionShowCmd.Flags().BoolVar(&showSteps, "steps", false, "Print every step")

	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionDeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete even if the session is still active")
}

func runSessionList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sessionRepo := storage.NewSessionRepository(db)
	sessions, err := sessionRepo.List(listLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded yet")
		fmt.Println("Start one with: rover drive")
		return nil
	}

	fmt.Printf("Recent sessions (showing %d):\n", len(sessions))
	fmt.Println()
	fmt.Printf("%-36s  %-19s  %-6s  %-10s  %-6s  %-7s  %s\n", "ID", "Started", "Source", "Duration", "Moves", "Blocked", "Final")
	fmt.Println("------------------------------------  -------------------  ------  ----------  ------  -------  -----")

	for _, s := range sessions {
		duration := "-"
		if s.DurationMs != nil {
			duration = formatDuration(time.Duration(*s.DurationMs) * time.Millisecond)
		}

		final := "(active)"
		if s.Final != nil {
			final = s.Final.String()
		}

		fmt.Printf("%-36s  %-19s  %-6s  %-10s  %-6d  %-7d  %s\n",
			s.SessionID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Source,
			duration,
			s.Moves,
			s.Blocked,
			final,
		)
	}

	return nil
}

// lookupSession returns the session with id, or the last one when id is empty.
func lookupSession(repo *storage.SessionRepository, id string) (*storage.Session, error) {
	var (
		s   *storage.Session
		err error
	)
	if id == "" {
		s, err = repo.GetLast()
	} else {
		s, err = repo.Get(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		if id == "" {
			return nil, fmt.Errorf("no sessions found")
		}
		return nil, fmt.Errorf("%w: %s", storage.ErrSessionNotFound, id)
	}
	return s, nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	s, err := lookupSession(storage.NewSessionRepository(db), id)
	if err != nil {
		return err
	}

	obstacles, err := storage.NewObstacleRepository(db).GetBySession(s.SessionID)
	if err != nil {
		return err
	}
	steps, err := storage.NewStepRepository(db).GetBySession(s.SessionID)
	if err != nil {
		return err
	}

	fmt.Printf("Session: %s\n", s.SessionID)
	fmt.Printf("Source:  %s\n", s.Source)
	fmt.Printf("Started: %s\n", s.StartedAt.Local().Format(time.RFC3339))
	if s.EndedAt != nil {
		fmt.Printf("Ended:   %s\n", s.EndedAt.Local().Format(time.RFC3339))
	} else {
		fmt.Println("Ended:   (active)")
	}
	if s.DurationMs != nil {
		fmt.Printf("Duration: %s\n", formatDuration(time.Duration(*s.DurationMs)*time.Millisecond))
	}
	if s.Notes != nil && *s.Notes != "" {
		fmt.Printf("Notes:   %s\n", *s.Notes)
	}
	fmt.Println()

	set := s.Settings
	fmt.Printf("Grid:      %dx%d per face\n", set.GridSize, set.GridSize)
	fmt.Printf("Topology:  %s\n", set.Topology)
	fmt.Printf("Obstacles: %d (density %.2f, %s, seed %d)\n", len(obstacles), set.Density, set.Strategy, set.Seed)
	fmt.Printf("Start:     %s\n", set.Start)

	var perFace [cube.NumFaces]int
	for _, o := range obstacles {
		perFace[o.Face]++
	}
	for _, f := range cube.Faces {
		fmt.Printf("  %-6s %d\n", f, perFace[f])
	}
	fmt.Println()

	if s.Final != nil {
		fmt.Printf("Final:     %s\n", s.Final)
		fmt.Printf("Moves: %d  Turns: %d  Blocked: %d  Crossings: %d\n", s.Moves, s.Turns, s.Blocked, s.Crossings)
	} else if len(steps) > 0 {
		fmt.Printf("Current:   %s\n", steps[len(steps)-1].State)
	}
	fmt.Printf("Steps:     %d\n", len(steps))

	if len(steps) > 0 {
		fmt.Println()
		if showSteps {
			for _, st := range steps {
				flag := ""
				if st.Blocked {
					flag = "  blocked"
				}
				fmt.Printf("%4d  %8s  %s  %s%s\n", st.Seq, formatDuration(time.Duration(st.TsMs)*time.Millisecond), st.Command, st.State, flag)
			}
		} else {
			fmt.Println(command.Format(stepCommands(steps), 60))
		}
	}

	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewSessionRepository(db)
	s, err := lookupSession(repo, args[0])
	if err != nil {
		return err
	}
	if s.EndedAt == nil && !deleteForce {
		return fmt.Errorf("session %s is still active; use --force to delete it", s.SessionID)
	}
	if err := repo.Delete(s.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("Deleted session %s\n", s.SessionID)
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}
