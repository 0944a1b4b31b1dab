package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"firemaze.ai/internal/persistence/indexdb"
	plog "firemaze.ai/internal/persistence/log"
	"firemaze.ai/internal/render"
	"firemaze.ai/internal/sim/experiment"
	"firemaze.ai/internal/sim/grid"
	"firemaze.ai/internal/sim/strategy"
)

func main() {
	var (
		ticksPath = flag.String("ticks", "", "path to a tick log (.jsonl.zst)")
		dbPath    = flag.String("db", "", "sqlite index (required with -trial)")
		runID     = flag.String("run", "", "run id (defaults to the tick log name)")
		trialID   = flag.String("trial", "", "trial id such as p3-t17 (optional)")
		label     = flag.String("strategy", "replan", "strategy to replay with -trial")
		show      = flag.Bool("render", false, "draw every tick")
		delay     = flag.Duration("delay", 0, "pause between rendered ticks")
	)
	flag.Parse()

	if *ticksPath == "" {
		fmt.Fprintln(os.Stderr, "missing -ticks")
		os.Exit(2)
	}

	if *trialID == "" {
		if err := summarize(*ticksPath); err != nil {
			fmt.Fprintln(os.Stderr, "summarize:", err)
			os.Exit(1)
		}
		return
	}

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "missing -db")
		os.Exit(2)
	}
	if *runID == "" {
		*runID = runIDFromPath(*ticksPath)
	}
	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	rp, err := experiment.ReplayTrial(context.Background(), idx, *runID, *trialID, *label)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	var recorded []strategy.TickEntry
	err = plog.ScanTicks(*ticksPath, func(e strategy.TickEntry) error {
		if e.Trial == *trialID && e.Strategy == *label {
			recorded = append(recorded, e)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read ticks:", err)
		os.Exit(1)
	}

	if *show {
		color := render.IsTerminal(os.Stdout)
		g := rp.Initial.Copy()
		start := g.Start()
		fmt.Println(render.Frame(g, render.Overlay{Agent: &start}, render.Options{Color: color, Caption: "initial"}))
		for _, e := range recorded {
			for _, p := range e.Ignited {
				g.Put(p, grid.OnFire)
			}
			agent := e.Agent
			caption := fmt.Sprintf("tick %d burning %d plan %d %s", e.Tick, e.Burning, e.PlanHops, e.Event)
			fmt.Println(render.Frame(g, render.Overlay{Agent: &agent}, render.Options{Color: color, Caption: caption}))
			if *delay > 0 {
				time.Sleep(*delay)
			}
		}
	}

	if err := experiment.VerifyTicks(recorded, rp.Ticks); err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: run=%s trial=%s strategy=%s p=%.2f outcome=%s moves=%d ticks=%d\n",
		*runID, *trialID, *label, rp.Density, rp.Outcome.Reason, rp.Outcome.Ticks, len(recorded))
}

// runIDFromPath strips the directory and the .jsonl.zst suffix.
func runIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl.zst")
}

// summarize prints the final event of every (trial, strategy) in a tick log.
func summarize(path string) error {
	type key struct{ trial, strategy string }
	last := map[key]strategy.TickEntry{}
	total := 0
	err := plog.ScanTicks(path, func(e strategy.TickEntry) error {
		total++
		if e.Event != "" {
			last[key{e.Trial, e.Strategy}] = e
		}
		return nil
	})
	if err != nil {
		return err
	}

	keys := make([]key, 0, len(last))
	byEvent := map[string]map[string]int{}
	for k, e := range last {
		keys = append(keys, k)
		if byEvent[k.strategy] == nil {
			byEvent[k.strategy] = map[string]int{}
		}
		byEvent[k.strategy][e.Event]++
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].strategy != keys[j].strategy {
			return keys[i].strategy < keys[j].strategy
		}
		return keys[i].trial < keys[j].trial
	})
	for _, k := range keys {
		e := last[k]
		fmt.Printf("%-12s %-10s %-8s tick=%d burning=%d\n", k.strategy, k.trial, e.Event, e.Tick, e.Burning)
	}
	strategies := make([]string, 0, len(byEvent))
	for s := range byEvent {
		strategies = append(strategies, s)
	}
	sort.Strings(strategies)
	for _, s := range strategies {
		fmt.Printf("%s: escaped=%d burned=%d trapped=%d timeout=%d\n", s,
			byEvent[s][strategy.ReasonEscaped], byEvent[s][strategy.ReasonBurned],
			byEvent[s][strategy.ReasonTrapped], byEvent[s][strategy.ReasonTimeout])
	}
	fmt.Printf("entries=%d runs=%d\n", total, len(last))
	return nil
}
