// Package experiment runs density sweeps over generated mazes and aggregates
// per-point statistics. Trials run concurrently but every trial draws from
// seeds derived from (base seed, point, trial), so a report depends only on
// the configuration.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"firemaze.ai/internal/metrics"
	"firemaze.ai/internal/persistence/indexdb"
	"firemaze.ai/internal/sim/encoding"
	"firemaze.ai/internal/sim/fire"
	"firemaze.ai/internal/sim/grid"
	"firemaze.ai/internal/sim/logic/mathx"
	"firemaze.ai/internal/sim/mazegen"
	"firemaze.ai/internal/sim/search"
	"firemaze.ai/internal/sim/strategy"
	"firemaze.ai/internal/sim/tuning"
)

type Kind string

const (
	KindReach  Kind = "reach"
	KindSearch Kind = "search"
	KindFire   Kind = "fire"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindReach, KindSearch, KindFire:
		return k, nil
	}
	return "", fmt.Errorf("unknown sweep kind %q", s)
}

// Point aggregates all trials of one label at one density.
type Point struct {
	Idx     int     `json:"idx"`
	Density float64 `json:"density"`
	Label   string  `json:"label"`

	Trials    int `json:"trials"`
	Successes int `json:"successes"`
	Skipped   int `json:"skipped"`

	// MeanExplored covers every trial; MeanHops and MeanTicks only successes.
	MeanExplored float64       `json:"mean_explored"`
	MeanHops     float64       `json:"mean_hops"`
	MeanTicks    float64       `json:"mean_ticks"`
	Elapsed      time.Duration `json:"elapsed"` // summed over trials
}

func (p Point) Rate() float64 {
	if p.Trials == 0 {
		return 0
	}
	return float64(p.Successes) / float64(p.Trials)
}

type Report struct {
	RunID   string        `json:"run_id"`
	Kind    Kind          `json:"kind"`
	Points  []Point       `json:"points"`
	Elapsed time.Duration `json:"elapsed"`
}

// Runner executes sweeps. RunID is generated when empty; Index, Metrics,
// Ticks and Log are optional.
type Runner struct {
	Cfg     tuning.Experiment
	RunID   string
	Index   *indexdb.SQLiteIndex
	Metrics *metrics.Recorder
	Ticks   strategy.TickSink
	Log     *log.Logger
}

func NewRunID() string { return uuid.NewString() }

type labelResult struct {
	label    string
	success  bool
	outcome  string
	explored int
	hops     int
	ticks    int
	dur      time.Duration
}

type trialResult struct {
	gridSeed int64
	fireSeed int64
	digest   string
	layout   string
	skipped  bool
	labels   []labelResult
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
	}
}

func (r *Runner) labels(kind Kind) []string {
	switch kind {
	case KindReach:
		return []string{search.AlgoDFS}
	case KindSearch:
		return r.Cfg.Algorithms
	default:
		return r.Cfg.Strategies
	}
}

// Run executes one sweep of the given kind.
func (r *Runner) Run(ctx context.Context, kind Kind) (Report, error) {
	cfg := r.Cfg
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	r.Cfg = cfg

	if r.RunID == "" {
		r.RunID = NewRunID()
	}
	rep := Report{RunID: r.RunID, Kind: kind}
	started := time.Now()

	if r.Index != nil {
		row := indexdb.RunRow{
			RunID:        rep.RunID,
			Kind:         string(kind),
			Name:         cfg.Name,
			Dim:          cfg.Dim,
			Seed:         cfg.Seed,
			Flammability: cfg.Flammability,
			Trials:       cfg.Trials,
		}
		if err := r.Index.RecordRun(ctx, row, cfg); err != nil {
			return rep, fmt.Errorf("record run: %w", err)
		}
	}

	densities := cfg.Density.Points()
	labels := r.labels(kind)
	r.logf("run %s: %s sweep n=%d over %d densities × %s trials (%d workers)",
		rep.RunID, kind, cfg.Dim, len(densities), humanize.Comma(int64(cfg.Trials)), cfg.Workers)

	results := make([][]trialResult, len(densities))
	for i := range results {
		results[i] = make([]trialResult, cfg.Trials)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for pi, p := range densities {
		for t := 0; t < cfg.Trials; t++ {
			pi, p, t := pi, p, t
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := r.trial(kind, pi, p, t)
				if err != nil {
					return fmt.Errorf("point %d (p=%v) trial %d: %w", pi, p, t, err)
				}
				results[pi][t] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	for pi, p := range densities {
		for li, label := range labels {
			pt := aggregate(pi, p, label, li, results[pi])
			rep.Points = append(rep.Points, pt)
			if err := r.record(ctx, kind, rep.RunID, pt, li, results[pi]); err != nil {
				return rep, err
			}
			r.logPoint(kind, pt)
		}
	}

	rep.Elapsed = time.Since(started)
	if r.Index != nil {
		if err := r.Index.FinishRun(ctx, rep.RunID); err != nil {
			return rep, fmt.Errorf("finish run: %w", err)
		}
	}
	r.logf("run %s: done in %s", rep.RunID, rep.Elapsed.Round(time.Millisecond))
	return rep, nil
}

func (r *Runner) trial(kind Kind, pointIdx int, p float64, t int) (trialResult, error) {
	cfg := r.Cfg
	seed := mathx.Derive(cfg.Seed, pointIdx, t)
	res := trialResult{gridSeed: seed}

	switch kind {
	case KindReach:
		gr, err := mazegen.Generate(cfg.Dim, p, seed)
		if err != nil {
			return res, err
		}
		res.digest = gr.Digest()
		began := time.Now()
		ok, explored := search.ReachableStats(gr)
		res.labels = []labelResult{{
			label: search.AlgoDFS, success: ok, outcome: searchOutcome(ok),
			explored: explored, dur: time.Since(began),
		}}
		return res, nil

	case KindSearch:
		gr, err := mazegen.Generate(cfg.Dim, p, seed)
		if err != nil {
			return res, err
		}
		res.digest = gr.Digest()
		for _, algo := range cfg.Algorithms {
			find, ok := search.PathFinder(algo)
			if !ok {
				return res, fmt.Errorf("unknown algorithm %q", algo)
			}
			began := time.Now()
			out, err := find(gr)
			lr := labelResult{label: algo, explored: out.Explored, dur: time.Since(began)}
			switch {
			case err == nil:
				lr.success, lr.hops = true, out.Path.Hops()
			case !errors.Is(err, search.ErrUnreachable):
				return res, err
			}
			lr.outcome = searchOutcome(lr.success)
			res.labels = append(res.labels, lr)
		}
		return res, nil

	case KindFire:
		gr, used, err := mazegen.GenerateSolvable(cfg.Dim, p, seed, cfg.MaxAttempts)
		if errors.Is(err, mazegen.ErrUnsolvable) {
			res.skipped = true
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.gridSeed = used
		res.fireSeed = mathx.Derive(used, pointIdx, t)
		if _, err := fire.Ignite(gr, res.fireSeed); err != nil {
			return res, err
		}
		res.digest = gr.Digest()
		res.layout = encoding.EncodeGrid(gr)
		for _, name := range cfg.Strategies {
			st, ok := strategy.Lookup(name)
			if !ok {
				return res, fmt.Errorf("unknown strategy %q", name)
			}
			began := time.Now()
			out, err := st.Run(gr, strategy.Config{
				Q:        cfg.Flammability,
				FireSeed: res.fireSeed,
				MaxTicks: cfg.MaxTicks,
				TrialID:  TrialID(pointIdx, t),
				Sink:     r.Ticks,
			})
			if err != nil {
				return res, err
			}
			res.labels = append(res.labels, labelResult{
				label: name, success: out.Survived, outcome: out.Reason,
				ticks: out.Ticks, dur: time.Since(began),
			})
		}
		return res, nil
	}
	return res, fmt.Errorf("unknown sweep kind %q", kind)
}

func searchOutcome(found bool) string {
	if found {
		return "found"
	}
	return "unreachable"
}

func aggregate(pointIdx int, p float64, label string, li int, trials []trialResult) Point {
	pt := Point{Idx: pointIdx, Density: p, Label: label}
	var explored, hops, ticks int
	for _, tr := range trials {
		if tr.skipped {
			pt.Skipped++
			continue
		}
		lr := tr.labels[li]
		pt.Trials++
		pt.Elapsed += lr.dur
		explored += lr.explored
		if lr.success {
			pt.Successes++
			hops += lr.hops
			ticks += lr.ticks
		}
	}
	if pt.Trials > 0 {
		pt.MeanExplored = float64(explored) / float64(pt.Trials)
	}
	if pt.Successes > 0 {
		pt.MeanHops = float64(hops) / float64(pt.Successes)
		pt.MeanTicks = float64(ticks) / float64(pt.Successes)
	}
	return pt
}

func (r *Runner) record(ctx context.Context, kind Kind, runID string, pt Point, li int, trials []trialResult) error {
	for t, tr := range trials {
		if tr.skipped {
			continue
		}
		lr := tr.labels[li]
		if r.Metrics != nil {
			if kind == KindFire {
				r.Metrics.ObserveTrial(lr.label, lr.outcome, lr.ticks)
			} else {
				r.Metrics.ObserveSearch(lr.label, lr.success, lr.explored)
			}
			r.Metrics.ObserveDuration(string(kind), lr.dur.Seconds())
		}
		r.Index.WriteTrial(indexdb.TrialRow{
			RunID:    runID,
			PointIdx: pt.Idx,
			Trial:    t,
			Label:    lr.label,
			GridSeed: tr.gridSeed,
			FireSeed: tr.fireSeed,
			Outcome:  lr.outcome,
			Explored: lr.explored,
			Hops:     lr.hops,
			Ticks:    lr.ticks,
			Digest:   tr.digest,
			Layout:   tr.layout,
		})
	}
	if r.Index == nil {
		return nil
	}
	err := r.Index.RecordPoint(ctx, indexdb.PointRow{
		RunID:        runID,
		PointIdx:     pt.Idx,
		Label:        pt.Label,
		Density:      pt.Density,
		Trials:       pt.Trials,
		Successes:    pt.Successes,
		Skipped:      pt.Skipped,
		MeanExplored: pt.MeanExplored,
		MeanHops:     pt.MeanHops,
		MeanTicks:    pt.MeanTicks,
		ElapsedMS:    pt.Elapsed.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("record point %d/%s: %w", pt.Idx, pt.Label, err)
	}
	return nil
}

func (r *Runner) logPoint(kind Kind, pt Point) {
	if r.Log == nil {
		return
	}
	switch kind {
	case KindFire:
		r.logf("p=%.2f %-12s survived %s/%s (%.1f%%) mean moves %.1f skipped %d",
			pt.Density, pt.Label, humanize.Comma(int64(pt.Successes)), humanize.Comma(int64(pt.Trials)),
			100*pt.Rate(), pt.MeanTicks, pt.Skipped)
	default:
		r.logf("p=%.2f %-6s reachable %.1f%% mean explored %s mean hops %.1f in %s",
			pt.Density, pt.Label, 100*pt.Rate(), humanize.CommafWithDigits(pt.MeanExplored, 1),
			pt.MeanHops, pt.Elapsed.Round(time.Microsecond))
	}
}

// Solution is one maze with the result of every search on it.
type Solution struct {
	Grid     *grid.Grid
	Seed     int64
	Reach    bool
	Explored map[string]int
	Paths    map[string]search.Path
}

// Solve generates one maze and runs reachability plus every registered path
// search on it.
func Solve(n int, p float64, seed int64) (Solution, error) {
	g, err := mazegen.Generate(n, p, seed)
	if err != nil {
		return Solution{}, err
	}
	sol := Solution{
		Grid:     g,
		Seed:     seed,
		Explored: map[string]int{},
		Paths:    map[string]search.Path{},
	}
	var explored int
	sol.Reach, explored = search.ReachableStats(g)
	sol.Explored[search.AlgoDFS] = explored
	for _, name := range search.PathFinderNames() {
		find, _ := search.PathFinder(name)
		res, err := find(g)
		sol.Explored[name] = res.Explored
		if errors.Is(err, search.ErrUnreachable) {
			continue
		}
		if err != nil {
			return sol, err
		}
		sol.Paths[name] = res.Path
	}
	return sol, nil
}
