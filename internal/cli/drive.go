package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"k8s.io/klog/v2"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/command"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/recorder"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
)

var (
	driveResume string
	driveNotes  string
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Drive the rover interactively",
	Long: `Start an interactive TUI showing the face the rover is on.

Keyboard shortcuts:
  f/Up    - Move forward
  b/Down  - Move backward
  l/Left  - Turn left
  r/Right - Turn right
  o       - Toggle the obstacle overview of all faces
  q/Esc   - Quit

Every command is recorded. Keys pressed while a move is still being shown
are ignored.`,
	RunE: runDrive,
}

func init() {
	rootCmd.AddCommand(driveCmd)
	driveCmd.Flags().StringVar(&driveResume, "resume", "", "Resume an unfinished session by ID (\"active\" for the last one)")
	driveCmd.Flags().StringVar(&driveNotes, "notes", "", "Notes stored with the session")
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	faceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	roverStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	obstacleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	blockedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	gridStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// landedMsg ends the in-flight window of the move with the given seq.
type landedMsg struct{ seq int }

type driveModel struct {
	mission   *marsrover.Mission
	sessionID string

	// The rover accepts no new command while a move is in flight.
	animation   time.Duration
	inFlight    bool
	inFlightSeq int
	ignored     int

	last     *rover.Step
	commands []rover.Command
	overview bool

	err      error
	quitting bool
}

func newDriveModel(m *marsrover.Mission, sessionID string, animation time.Duration) *driveModel {
	return &driveModel{
		mission:   m,
		sessionID: sessionID,
		animation: animation,
	}
}

func (m *driveModel) Init() tea.Cmd {
	return nil
}

func keyCommand(key string) (rover.Command, bool) {
	switch key {
	case "f", "up", "k":
		return rover.Forward, true
	case "b", "down", "j":
		return rover.Backward, true
	case "l", "left", "h":
		return rover.TurnLeft, true
	case "r", "right":
		return rover.TurnRight, true
	}
	return 0, false
}

func (m *driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "o":
			m.overview = !m.overview
			return m, nil
		}

		cmd, ok := keyCommand(msg.String())
		if !ok {
			return m, nil
		}
		if m.inFlight {
			m.ignored++
			return m, nil
		}
		return m, m.execute(cmd)

	case landedMsg:
		if msg.seq == m.inFlightSeq {
			m.inFlight = false
		}
	}

	return m, nil
}

func (m *driveModel) execute(c rover.Command) tea.Cmd {
	step := m.mission.Execute(c)
	m.last = &step
	m.commands = append(m.commands, c)

	if !step.Result.Success || m.animation <= 0 {
		return nil
	}
	m.inFlight = true
	m.inFlightSeq = step.Seq
	return tea.Tick(m.animation, func(time.Time) tea.Msg {
		return landedMsg{seq: step.Seq}
	})
}

func (m *driveModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	st := m.mission.State()
	s := m.mission.Settings()

	b.WriteString(titleStyle.Render("Cube Rover"))
	b.WriteString("\n")
	info := fmt.Sprintf("%dx%d %s topology, seed %d, %d obstacles",
		s.GridSize, s.GridSize, s.Topology, s.Seed, m.mission.Field().Len())
	if m.sessionID != "" {
		info += fmt.Sprintf(", session %s", shortID(m.sessionID))
	}
	b.WriteString(statusStyle.Render(info))
	b.WriteString("\n\n")

	if m.overview {
		b.WriteString(renderOverview(m.mission))
	} else {
		b.WriteString(faceStyle.Render(fmt.Sprintf("Face %s", st.Face)))
		b.WriteString("  ")
		b.WriteString(statusStyle.Render(neighbours(m.mission.Topology(), st.Face)))
		b.WriteString("\n")
		b.WriteString(gridStyle.Render(renderFace(m.mission, st.Face, true)))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Position: %s (%d,%d) heading %s\n", st.Face, st.Cell.X, st.Cell.Y, st.Heading))
	odo := m.mission.Odometry()
	b.WriteString(fmt.Sprintf("Moves: %d  Turns: %d  Blocked: %d  Crossings: %d\n",
		odo.Moves, odo.Turns, odo.Blocked, odo.Crossings))

	if m.last != nil {
		switch {
		case m.last.Result.Blocked:
			b.WriteString(blockedStyle.Render(fmt.Sprintf("%s blocked by an obstacle", m.last.Command.Name())))
		case m.last.Crossed():
			b.WriteString(roverStyle.Render(fmt.Sprintf("Crossed from %s to %s", m.last.Before.Face, m.last.Result.State.Face)))
		default:
			b.WriteString(statusStyle.Render(m.last.Command.Name()))
		}
		if m.inFlight {
			b.WriteString(statusStyle.Render("  (moving)"))
		}
		b.WriteString("\n")
	}

	if len(m.commands) > 0 {
		start := 0
		prefix := ""
		if len(m.commands) > 40 {
			start = len(m.commands) - 40
			prefix = "... "
		}
		b.WriteString("Commands: " + prefix)
		b.WriteString(roverStyle.Render(command.Format(m.commands[start:], 0)))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("f/b=move  l/r=turn  arrows work too  o=overview  q=quit"))
	b.WriteString("\n")

	return b.String()
}

var headingGlyph = map[cube.Heading]string{cube.N: "^", cube.E: ">", cube.S: "v", cube.W: "<"}

// renderFace draws face with (0,0) top left, so north is the top row.
func renderFace(m *marsrover.Mission, face cube.Face, styled bool) string {
	size := m.Settings().GridSize
	st := m.State()
	field := m.Field()

	paint := func(style lipgloss.Style, s string) string {
		if styled {
			return style.Render(s)
		}
		return s
	}

	var b strings.Builder
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x > 0 {
				b.WriteByte(' ')
			}
			switch {
			case st.Face == face && st.Cell.X == x && st.Cell.Y == y:
				b.WriteString(paint(roverStyle, headingGlyph[st.Heading]))
			case field.HasObstacle(face, x, y):
				b.WriteString(paint(obstacleStyle, "#"))
			default:
				b.WriteString(".")
			}
		}
		if y < size-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// renderOverview lays the faces out as a net: TOP above FRONT, BOTTOM below.
func renderOverview(m *marsrover.Mission) string {
	box := func(f cube.Face) string {
		title := faceStyle.Render(f.String())
		return lipgloss.JoinVertical(lipgloss.Left, title, gridStyle.Render(renderFace(m, f, true)))
	}
	blank := lipgloss.NewStyle().Width(lipgloss.Width(box(cube.Front))).Render("")

	top := lipgloss.JoinHorizontal(lipgloss.Top, blank, box(cube.Top))
	middle := lipgloss.JoinHorizontal(lipgloss.Top, box(cube.Left), box(cube.Front), box(cube.Right), box(cube.Back))
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, blank, box(cube.Bottom))
	return lipgloss.JoinVertical(lipgloss.Left, top, middle, bottom)
}

func neighbours(t *cube.Topology, face cube.Face) string {
	parts := make([]string, 0, 4)
	for _, edge := range cube.Headings {
		if r, ok := t.Rule(face, edge); ok {
			parts = append(parts, fmt.Sprintf("%s:%s", edge, r.To))
		}
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDrive(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("drive needs an interactive terminal; use 'rover run' for scripts")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	animation, err := cfg.AnimationDuration()
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	stateFile, err := recorder.NewDefaultStateFile()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	session := recorder.NewSession(db, stateFile)
	dir, err := getJournalDir(cfg)
	if err != nil {
		return err
	}
	session.SetJournalDir(dir)

	var mission *marsrover.Mission
	switch driveResume {
	case "":
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		mission, err = marsrover.New(opts...)
		if err != nil {
			return err
		}
		if _, err := session.Start(storage.SourceDrive, mission, driveNotes); err != nil {
			return err
		}
	default:
		id := driveResume
		if id == "active" {
			if !stateFile.HasActiveSession() {
				return fmt.Errorf("no active session to resume")
			}
			id = stateFile.ActiveSessionID()
		}
		mission, err = session.Resume(id)
		if err != nil {
			return err
		}
		fmt.Printf("Resuming session %s at %s\n", id, mission.State())
	}

	model := newDriveModel(mission, session.SessionID(), animation)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()

	id := session.SessionID()
	if err := session.End(); err != nil {
		klog.Errorf("failed to end session: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}

	odo := mission.Odometry()
	fmt.Printf("Session %s: %d moves, %d turns, %d blocked, final %s\n",
		id, odo.Moves, odo.Turns, odo.Blocked, mission.State())
	if path := session.JournalPath(); path != "" {
		fmt.Printf("Journal: %s\n", path)
	}
	return nil
}
