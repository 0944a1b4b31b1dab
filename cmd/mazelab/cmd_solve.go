package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"firemaze.ai/internal/render"
	"firemaze.ai/internal/sim/experiment"
	"firemaze.ai/internal/sim/fire"
	"firemaze.ai/internal/sim/search"
)

var (
	solveDim     int
	solveDensity float64
	solveSeed    int64
	solveColor   string
	solveIgnite  bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Generate one maze and draw the path each search finds",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().IntVar(&solveDim, "dim", 20, "maze dimension")
	solveCmd.Flags().Float64Var(&solveDensity, "density", 0.3, "obstacle probability per cell")
	solveCmd.Flags().Int64Var(&solveSeed, "seed", 1, "maze seed")
	solveCmd.Flags().StringVar(&solveColor, "color", "auto", "auto, always or never")
	solveCmd.Flags().BoolVar(&solveIgnite, "ignite", false, "also show where the initial fire would start")
}

func colorEnabled(mode string) (bool, error) {
	switch mode {
	case "auto":
		return render.IsTerminal(os.Stdout), nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	}
	return false, fmt.Errorf("--color %q: want auto, always or never", mode)
}

func runSolve(cmd *cobra.Command, _ []string) error {
	color, err := colorEnabled(solveColor)
	if err != nil {
		return err
	}
	sol, err := experiment.Solve(solveDim, solveDensity, solveSeed)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "maze n=%d p=%.2f seed=%d digest=%s\n", solveDim, solveDensity, solveSeed, sol.Grid.Digest()[:12])
	fmt.Fprintf(out, "dfs: reachable=%v explored=%s\n", sol.Reach, humanize.Comma(int64(sol.Explored[search.AlgoDFS])))

	for _, name := range search.PathFinderNames() {
		path, ok := sol.Paths[name]
		caption := fmt.Sprintf("%s: explored=%s", name, humanize.Comma(int64(sol.Explored[name])))
		if ok {
			caption += fmt.Sprintf(" hops=%d", path.Hops())
		} else {
			caption += " unreachable"
		}
		fmt.Fprintln(out, render.Frame(sol.Grid, render.Overlay{Path: path}, render.Options{Color: color, Caption: caption}))
	}

	if solveIgnite {
		g := sol.Grid.Copy()
		p, err := fire.Ignite(g, solveSeed)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, render.Frame(g, render.Overlay{}, render.Options{Color: color, Caption: "initial fire at " + p.String()}))
	}
	return nil
}
