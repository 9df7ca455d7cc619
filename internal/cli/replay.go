package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/iaimans/mars-rover-ai-jam/internal/journal"
	"github.com/iaimans/mars-rover-ai-jam/internal/recorder"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

var replayCmd = &cobra.Command{
	Use:   "replay [journal]",
	Short: "Replay a recorded journal",
	Long: `Replay a journal on a fresh rover rebuilt from the journal's header,
checking every step against the recording.

With no argument, replays the most recent journal. Relative names are
looked up in the journal directory.

Usage:
  rover replay                     # Replay the last journal
  rover replay --list              # List available journals
  rover replay <journal>           # Replay a specific journal
  rover replay <journal> --check   # Verify without the TUI
  rover replay --speed 4           # Replay at 4x speed
  rover replay --step              # Step through manually`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

var (
	replaySpeed float64
	replayStep  bool
	replayCheck bool
	replayList  bool
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64VarP(&replaySpeed, "speed", "s", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVarP(&replayStep, "step", "t", false, "Step through commands manually")
	replayCmd.Flags().BoolVar(&replayCheck, "check", false, "Verify the journal and print a report")
	replayCmd.Flags().BoolVar(&replayList, "list", false, "List available journals")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.JournalDir
	if dir == "" {
		if dir, err = defaultJournalDir(); err != nil {
			return err
		}
	}

	if replayList {
		return listJournals(dir)
	}

	path, err := resolveJournal(dir, args)
	if err != nil {
		return err
	}
	j, err := journal.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}

	if replayCheck {
		return checkJournal(path, j)
	}

	fmt.Printf("Loaded journal: %s\n", path)
	fmt.Printf("Steps: %d\n", len(j.Steps))

	r, err := journal.NewReplayer(j)
	if err != nil {
		return err
	}
	model := newReplayModel(r, replaySpeed, replayStep)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("replay error: %w", err)
	}
	if n := len(r.Divergences()); n > 0 {
		return fmt.Errorf("%d of %d steps diverged from the recording", n, r.Position())
	}
	return nil
}

func resolveJournal(dir string, args []string) (string, error) {
	if len(args) == 0 {
		sf, err := recorder.NewDefaultStateFile()
		if err != nil {
			return "", fmt.Errorf("failed to load state: %w", err)
		}
		if sf.LastJournal() == "" {
			return "", fmt.Errorf("no journal recorded yet; see 'rover replay --list'")
		}
		return sf.LastJournal(), nil
	}
	path := args[0]
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Join(dir, path), nil
}

func checkJournal(path string, j *journal.Journal) error {
	rep, err := journal.Replay(j)
	if err != nil {
		return err
	}

	fmt.Printf("Journal:  %s\n", path)
	if j.Header.SessionID != "" {
		fmt.Printf("Session:  %s (%s)\n", j.Header.SessionID, j.Header.Source)
	}
	s := j.Header.Settings
	fmt.Printf("Mission:  %dx%d %s topology, %d obstacles, start %s\n",
		s.GridSize, s.GridSize, s.Topology, len(j.Header.Obstacles), s.Start)
	fmt.Printf("Steps:    %d\n", rep.Steps)
	fmt.Printf("Final:    %s\n", rep.Final)
	fmt.Printf("Odometry: %d moves, %d turns, %d blocked, %d crossings\n",
		rep.Odometry.Moves, rep.Odometry.Turns, rep.Odometry.Blocked, rep.Odometry.Crossings)
	if j.End == nil {
		fmt.Println("Journal has no end record (session was interrupted)")
	}
	if j.Truncated {
		fmt.Println("Journal was never closed; read up to its last complete record")
	}

	for _, d := range rep.Divergences {
		fmt.Println(errorStyle.Render(d.String()))
	}
	if len(rep.Divergences) > 0 || !rep.FinalMatches {
		return fmt.Errorf("journal does not replay: %d divergences, final state match %v",
			len(rep.Divergences), rep.FinalMatches)
	}
	fmt.Println("OK")
	return nil
}

func listJournals(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No journals found. Record one with: rover drive")
			return nil
		}
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), journal.Ext) {
			names = append(names, e.Name())
		}
	}

	if len(names) == 0 {
		fmt.Println("No journals found. Record one with: rover drive")
		return nil
	}

	// Names start with a timestamp, so newest sorts last.
	sort.Strings(names)

	fmt.Printf("Journals in %s:\n", dir)
	fmt.Println()
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}
	fmt.Println()
	fmt.Println("Usage: rover replay <journal>")

	return nil
}

// Replay model
type replayModel struct {
	replayer   *journal.Replayer
	speed      float64
	stepMode   bool
	paused     bool
	last       *rover.Step
	lastDiv    *journal.Divergence
	lastMs     int64
	elapsed    time.Duration
	generation int
	quitting   bool
}

func newReplayModel(r *journal.Replayer, speed float64, stepMode bool) *replayModel {
	if speed <= 0 {
		speed = 1
	}
	return &replayModel{
		replayer: r,
		speed:    speed,
		stepMode: stepMode,
		paused:   stepMode, // Start paused in step mode
	}
}

// replayStepMsg carries the generation it was scheduled in so that ticks
// scheduled before a pause or reset are dropped.
type replayStepMsg struct{ generation int }

func (m *replayModel) Init() tea.Cmd {
	if m.stepMode {
		return nil // Wait for user input in step mode
	}
	return m.scheduleNext()
}

func (m *replayModel) scheduleNext() tea.Cmd {
	steps := m.replayer.Journal().Steps
	pos := m.replayer.Position()
	if pos >= len(steps) {
		return nil
	}

	// Delay by the recorded gap, capped so idle stretches don't stall.
	delayMs := steps[pos].ElapsedMs - m.lastMs
	if delayMs < 0 {
		delayMs = 0
	}
	if delayMs > 2000 {
		delayMs = 2000
	}
	delay := time.Duration(float64(delayMs)/m.speed) * time.Millisecond

	gen := m.generation
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return replayStepMsg{generation: gen}
	})
}

func (m *replayModel) advance() {
	steps := m.replayer.Journal().Steps
	pos := m.replayer.Position()
	if pos >= len(steps) {
		return
	}
	m.lastMs = steps[pos].ElapsedMs
	m.elapsed = time.Duration(m.lastMs) * time.Millisecond

	step, div, ok := m.replayer.Next()
	if !ok {
		return
	}
	m.last = &step
	m.lastDiv = div
}

func (m *replayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case " ", "n":
			if m.stepMode || m.paused {
				m.advance()
			} else {
				m.paused = true
				m.generation++
			}

		case "p":
			m.paused = !m.paused
			m.generation++
			if !m.paused && !m.stepMode {
				return m, m.scheduleNext()
			}

		case "r":
			r, err := journal.NewReplayer(m.replayer.Journal())
			if err != nil {
				return m, nil
			}
			m.replayer = r
			m.last, m.lastDiv = nil, nil
			m.lastMs, m.elapsed = 0, 0
			m.generation++
			if !m.paused && !m.stepMode {
				return m, m.scheduleNext()
			}

		case "+", "=":
			m.speed *= 2
			if m.speed > 16 {
				m.speed = 16
			}

		case "-":
			m.speed /= 2
			if m.speed < 0.25 {
				m.speed = 0.25
			}
		}

	case replayStepMsg:
		if msg.generation == m.generation && !m.paused {
			m.advance()
			return m, m.scheduleNext()
		}
	}

	return m, nil
}

func (m *replayModel) View() string {
	if m.quitting {
		return "Replay ended.\n"
	}

	var b strings.Builder
	mission := m.replayer.Mission()
	st := mission.State()

	b.WriteString(titleStyle.Render("Cube Rover Replay"))
	b.WriteString("\n\n")

	progress := fmt.Sprintf("Step %d/%d", m.replayer.Position(), len(m.replayer.Journal().Steps))
	if m.paused {
		progress += " [PAUSED]"
	}
	if m.stepMode {
		progress += " [STEP MODE]"
	}
	if m.replayer.Done() {
		progress += " [DONE]"
	}
	b.WriteString(statusStyle.Render(progress))
	b.WriteString(fmt.Sprintf(" (%.2gx speed)  Time: %s\n\n", m.speed, formatDuration(m.elapsed)))

	b.WriteString(faceStyle.Render(fmt.Sprintf("Face %s", st.Face)))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(neighbours(mission.Topology(), st.Face)))
	b.WriteString("\n")
	b.WriteString(gridStyle.Render(renderFace(mission, st.Face, true)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Position: %s\n", st))

	if m.last != nil {
		b.WriteString(statusStyle.Render(formatStep(*m.last)))
		b.WriteString("\n")
	}
	if m.lastDiv != nil {
		b.WriteString(errorStyle.Render("Diverged: " + m.lastDiv.String()))
		b.WriteString("\n")
	}
	if n := len(m.replayer.Divergences()); n > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Divergences: %d", n)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "SPACE/n=next  p=pause  r=reset  +/-=speed  q=quit"
	if m.stepMode {
		help = "SPACE/n=next step  r=reset  q=quit"
	}
	b.WriteString(helpStyle.Render(help))
	b.WriteString("\n")

	return b.String()
}
