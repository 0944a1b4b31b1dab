package experiment

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firemaze.ai/internal/metrics"
	"firemaze.ai/internal/persistence/indexdb"
	"firemaze.ai/internal/sim/strategy"
	"firemaze.ai/internal/sim/tuning"
)

func smallConfig() tuning.Experiment {
	cfg := tuning.Defaults()
	cfg.Name = "unit"
	cfg.Dim = 8
	cfg.Seed = 42
	cfg.Trials = 6
	cfg.Workers = 4
	cfg.Density = tuning.Range{From: 0, To: 0.3, Step: 0.1}
	cfg.MaxAttempts = 50
	return cfg
}

type lockedSink struct {
	mu      sync.Mutex
	entries []strategy.TickEntry
}

func (s *lockedSink) WriteTick(e strategy.TickEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func stripTiming(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		p.Elapsed = 0
		out[i] = p
	}
	return out
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"reach", "search", "fire"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}
	_, err := ParseKind("flood")
	assert.Error(t, err)
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	for _, kind := range []Kind{KindReach, KindSearch, KindFire} {
		a := smallConfig()
		a.Workers = 1
		b := smallConfig()
		b.Workers = 8

		ra, err := (&Runner{Cfg: a}).Run(context.Background(), kind)
		require.NoError(t, err)
		rb, err := (&Runner{Cfg: b}).Run(context.Background(), kind)
		require.NoError(t, err)

		assert.Equal(t, stripTiming(ra.Points), stripTiming(rb.Points), "kind=%s", kind)
	}
}

func TestRun_ReachExtremes(t *testing.T) {
	cfg := smallConfig()
	cfg.Density = tuning.Range{From: 0, To: 1, Step: 1}
	rep, err := (&Runner{Cfg: cfg}).Run(context.Background(), KindReach)
	require.NoError(t, err)
	require.Len(t, rep.Points, 2)

	assert.Equal(t, 0.0, rep.Points[0].Density)
	assert.Equal(t, 1.0, rep.Points[0].Rate())
	assert.Equal(t, 1.0, rep.Points[1].Density)
	assert.Equal(t, 0.0, rep.Points[1].Rate())
	assert.Equal(t, cfg.Trials, rep.Points[1].Trials)
}

func TestRun_SearchOpenGrid(t *testing.T) {
	cfg := smallConfig()
	cfg.Density = tuning.Range{From: 0, To: 0, Step: 0.1}
	rep, err := (&Runner{Cfg: cfg}).Run(context.Background(), KindSearch)
	require.NoError(t, err)
	require.Len(t, rep.Points, len(cfg.Algorithms))
	for _, pt := range rep.Points {
		assert.Equal(t, cfg.Trials, pt.Successes, pt.Label)
		assert.Equal(t, float64(2*(cfg.Dim-1)), pt.MeanHops, pt.Label)
		assert.Greater(t, pt.MeanExplored, 0.0, pt.Label)
	}
}

func counterSum(t *testing.T, rec *metrics.Recorder, name string) float64 {
	t.Helper()
	mfs, err := rec.Registry().Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestRun_FireRecordsEverywhere(t *testing.T) {
	cfg := smallConfig()
	cfg.Density = tuning.Range{From: 0.1, To: 0.2, Step: 0.1}

	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := indexdb.OpenSQLite(dbPath)
	require.NoError(t, err)
	rec := metrics.NewRecorder()
	sink := &lockedSink{}
	var logs bytes.Buffer

	r := &Runner{
		Cfg:     cfg,
		RunID:   "run-fixed",
		Index:   idx,
		Metrics: rec,
		Ticks:   sink,
		Log:     log.New(&logs, "[test] ", 0),
	}
	rep, err := r.Run(context.Background(), KindFire)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.Equal(t, "run-fixed", rep.RunID)
	require.Len(t, rep.Points, 2*len(cfg.Strategies))
	total := 0
	for _, pt := range rep.Points {
		assert.Equal(t, cfg.Trials, pt.Trials+pt.Skipped)
		assert.Equal(t, KindFire, rep.Kind)
		total += pt.Trials
	}
	assert.NotEmpty(t, sink.entries)
	assert.Contains(t, logs.String(), "run run-fixed")
	assert.Equal(t, float64(total), counterSum(t, rec, "firemaze_trials_total"))

	idx, err = indexdb.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	runs, err := idx.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fire", runs[0].Kind)
	assert.NotEmpty(t, runs[0].FinishedAt)

	pts, err := idx.Points(ctx, "run-fixed")
	require.NoError(t, err)
	assert.Len(t, pts, len(rep.Points))

	counts, err := idx.OutcomeCounts(ctx, "run-fixed")
	require.NoError(t, err)
	rows := 0
	for _, byOutcome := range counts {
		for _, n := range byOutcome {
			rows += n
		}
	}
	assert.Equal(t, total, rows)
}

func TestRun_FireAllSkippedWhenUnsolvable(t *testing.T) {
	cfg := smallConfig()
	cfg.Density = tuning.Range{From: 1, To: 1, Step: 0.1}
	cfg.MaxAttempts = 3
	rep, err := (&Runner{Cfg: cfg}).Run(context.Background(), KindFire)
	require.NoError(t, err)
	for _, pt := range rep.Points {
		assert.Equal(t, 0, pt.Trials)
		assert.Equal(t, cfg.Trials, pt.Skipped)
		assert.Equal(t, 0.0, pt.Rate())
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Runner{Cfg: smallConfig()}).Run(ctx, KindSearch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Dim = 1
	_, err := (&Runner{Cfg: cfg}).Run(context.Background(), KindReach)
	assert.Error(t, err)
}

func TestSolve_OpenMaze(t *testing.T) {
	sol, err := Solve(6, 0, 1)
	require.NoError(t, err)
	assert.True(t, sol.Reach)
	require.Contains(t, sol.Paths, "bfs")
	require.Contains(t, sol.Paths, "astar")
	assert.Equal(t, 10, sol.Paths["bfs"].Hops())
	assert.Equal(t, 10, sol.Paths["astar"].Hops())
	assert.Greater(t, sol.Explored["dfs"], 0)
}

func TestSolve_BlockedMaze(t *testing.T) {
	sol, err := Solve(6, 1, 1)
	require.NoError(t, err)
	assert.False(t, sol.Reach)
	assert.Empty(t, sol.Paths)
}
