package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
)

var (
	topologyNet   string
	topologySize  int
	topologyCheck bool
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Print the edge crossing table",
	Long: `Print the 24 rules that map a move off one face onto its neighbour.

With --check, every rule is driven across along its whole edge and then
backed up once; rules that do not return the rover to where it started are
reported. The reference table has eight quarter-turn rules that do not
retrace; the geometric table retraces everywhere.`,
	RunE: runTopology,
}

func init() {
	rootCmd.AddCommand(topologyCmd)
	topologyCmd.Flags().StringVar(&topologyNet, "net", "", "Crossing table: reference or geometric (default: from config)")
	topologyCmd.Flags().IntVar(&topologySize, "size", 0, "Grid size (default: from config)")
	topologyCmd.Flags().BoolVar(&topologyCheck, "check", false, "Check that every crossing retraces")
}

func turnName(t int) string {
	switch t {
	case 0:
		return "none"
	case 1:
		return "right"
	case -1:
		return "left"
	case 2, -2:
		return "about"
	}
	return fmt.Sprintf("%+d", t)
}

func runTopology(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	size := cfg.GridSize
	if topologySize > 0 {
		size = topologySize
	}
	name := cfg.Topology
	if topologyNet != "" {
		name = topologyNet
	}
	net, err := cube.ParseNet(name)
	if err != nil {
		return err
	}
	topo, err := cube.NewTopology(size, net)
	if err != nil {
		return err
	}

	fmt.Printf("%s topology, %dx%d faces\n\n", net, size, size)

	if !topologyCheck {
		last := size - 1
		fmt.Printf("%-7s %-4s %-7s %-6s %s\n", "From", "Edge", "To", "Turn", "Entry")
		fmt.Println("------- ---- ------- ------ ---------------------")
		for _, f := range cube.Faces {
			for _, edge := range cube.Headings {
				r, _ := topo.Rule(f, edge)
				// Entry cells for the two ends of the edge.
				x0, y0 := edgeEnds(edge, 0, size)
				x1, y1 := edgeEnds(edge, last, size)
				a := r.Remap(x0, y0, last)
				b := r.Remap(x1, y1, last)
				fmt.Printf("%-7s %-4s %-7s %-6s %s..%s\n", f, edge, r.To, turnName(r.Turn), a, b)
			}
		}
		return nil
	}

	failed := 0
	for _, rt := range topo.RoundTrips() {
		status := roverStyle.Render("ok")
		if !rt.OK {
			failed++
			status = blockedStyle.Render("no") + "  " + rt.Failure
		}
		fmt.Printf("%-7s %-4s -> %-7s turn %-6s %s\n", rt.Face, rt.Edge, rt.To, turnName(rt.Turn), status)
	}
	fmt.Println()
	if failed > 0 {
		fmt.Printf("%d of %d crossings do not retrace\n", failed, cube.NumFaces*4)
	} else {
		fmt.Println("All crossings retrace")
	}
	return nil
}

// edgeEnds returns the off-grid coordinates of cell i along edge.
func edgeEnds(edge cube.Heading, i, size int) (x, y int) {
	switch edge {
	case cube.N:
		return i, -1
	case cube.S:
		return i, size
	case cube.E:
		return size, i
	default:
		return -1, i
	}
}
