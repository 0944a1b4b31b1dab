package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_RunPointsTrials(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	run := RunRow{RunID: "r1", Kind: "fire", Name: "unit", Dim: 10, Seed: 7, Flammability: 0.3, Trials: 3}
	if err := idx.RecordRun(ctx, run, map[string]any{"dim": 10}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	for i, outcome := range []string{"escaped", "burned", "escaped"} {
		idx.WriteTrial(TrialRow{RunID: "r1", PointIdx: 0, Trial: i, Label: "replan", Outcome: outcome, Hops: 18})
	}
	if err := idx.RecordPoint(ctx, PointRow{RunID: "r1", PointIdx: 0, Label: "replan", Density: 0.2, Trials: 3, Successes: 2, MeanHops: 18}); err != nil {
		t.Fatalf("RecordPoint: %v", err)
	}
	if err := idx.FinishRun(ctx, "r1"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st := idx.Stats(); st.WrittenTotal != 3 || st.DropTrialTotal != 0 || st.WriteErrTotal != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	runs, err := idx.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "r1" || runs[0].FinishedAt == "" || len(runs[0].ConfigDigest) != 64 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	pts, err := idx.Points(ctx, "r1")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(pts) != 1 || pts[0].Successes != 2 || pts[0].Rate() < 0.66 || pts[0].Rate() > 0.67 {
		t.Fatalf("unexpected points: %+v", pts)
	}
	counts, err := idx.OutcomeCounts(ctx, "r1")
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	if counts["replan"]["escaped"] != 2 || counts["replan"]["burned"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestSQLiteIndex_PointRequiresRun(t *testing.T) {
	idx := openTemp(t)
	err := idx.RecordPoint(context.Background(), PointRow{RunID: "missing", Label: "bfs"})
	if err == nil {
		t.Fatalf("expected foreign key error")
	}
}

func TestSQLiteIndex_FinishUnknownRun(t *testing.T) {
	idx := openTemp(t)
	err := idx.FinishRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan TrialRow, 1)}
	s.WriteTrial(TrialRow{Trial: 1})
	s.WriteTrial(TrialRow{Trial: 2})
	s.WriteTrial(TrialRow{Trial: 3})

	st := s.Stats()
	if st.DropTrialTotal != 2 {
		t.Fatalf("DropTrialTotal=%d want=2", st.DropTrialTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_ClosedIsInert(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	idx.WriteTrial(TrialRow{RunID: "x"})
	if err := idx.RecordRun(context.Background(), RunRow{RunID: "x"}, nil); err == nil {
		t.Fatalf("expected error on closed index")
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSQLiteIndex_RunAndTrialLookup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.RecordRun(ctx, RunRow{RunID: "r2", Kind: "fire", Dim: 9, Flammability: 0.4, Trials: 1}, map[string]int{"max_ticks": 7}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	idx.WriteTrial(TrialRow{RunID: "r2", PointIdx: 1, Trial: 0, Label: "replan", GridSeed: 11, FireSeed: 12, Outcome: "burned", Ticks: 3, Digest: "abc"})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	run, err := idx.Run(ctx, "r2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Dim != 9 || run.ConfigJSON != `{"max_ticks":7}` {
		t.Fatalf("unexpected run: %+v", run)
	}
	tr, err := idx.Trial(ctx, "r2", 1, 0, "replan")
	if err != nil {
		t.Fatalf("Trial: %v", err)
	}
	if tr.GridSeed != 11 || tr.FireSeed != 12 || tr.Outcome != "burned" || tr.Digest != "abc" {
		t.Fatalf("unexpected trial: %+v", tr)
	}
	if _, err := idx.Trial(ctx, "r2", 1, 0, "follow_plan"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if _, err := idx.Run(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}
