package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex stores experiment runs, per-density aggregates and per-trial
// rows. Run and point rows are written synchronously; trial rows go through a
// buffered writer goroutine and are dropped if it falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan TrialRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTrialTotal atomic.Uint64
	writeErrTotal  atomic.Uint64
	writtenTotal   atomic.Uint64
}

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropTrialTotal uint64
	WriteErrTotal  uint64
	WrittenTotal   uint64
}

// RunRow describes one sweep invocation.
type RunRow struct {
	RunID        string  `json:"run_id"`
	Kind         string  `json:"kind"`
	Name         string  `json:"name"`
	Dim          int     `json:"dim"`
	Seed         int64   `json:"seed"`
	Flammability float64 `json:"flammability"`
	Trials       int     `json:"trials"`
	ConfigJSON   string  `json:"config_json,omitempty"`
	ConfigDigest string  `json:"config_digest"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   string  `json:"finished_at,omitempty"`
}

// PointRow is the aggregate for one (density, label) pair of a run. Label is
// the algorithm or strategy name. Skipped trials had no solvable maze and are
// not part of Trials.
type PointRow struct {
	RunID        string  `json:"run_id"`
	PointIdx     int     `json:"point_idx"`
	Label        string  `json:"label"`
	Density      float64 `json:"density"`
	Trials       int     `json:"trials"`
	Successes    int     `json:"successes"`
	Skipped      int     `json:"skipped"`
	MeanExplored float64 `json:"mean_explored"`
	MeanHops     float64 `json:"mean_hops"`
	MeanTicks    float64 `json:"mean_ticks"`
	ElapsedMS    int64   `json:"elapsed_ms"`
}

// Rate is Successes/Trials.
func (p PointRow) Rate() float64 {
	if p.Trials == 0 {
		return 0
	}
	return float64(p.Successes) / float64(p.Trials)
}

type TrialRow struct {
	RunID    string `json:"run_id"`
	PointIdx int    `json:"point_idx"`
	Trial    int    `json:"trial"`
	Label    string `json:"label"`
	GridSeed int64  `json:"grid_seed"`
	FireSeed int64  `json:"fire_seed"`
	Outcome  string `json:"outcome"`
	Explored int    `json:"explored"`
	Hops     int    `json:"hops"`
	Ticks    int    `json:"ticks"`
	Digest   string `json:"digest"`
	Layout   string `json:"layout,omitempty"` // run-length encoded starting grid
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan TrialRow, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			dim INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			flammability REAL NOT NULL,
			trials INTEGER NOT NULL,
			config_json TEXT NOT NULL,
			config_digest TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS points (
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			point_idx INTEGER NOT NULL,
			label TEXT NOT NULL,
			density REAL NOT NULL,
			trials INTEGER NOT NULL,
			successes INTEGER NOT NULL,
			skipped INTEGER NOT NULL DEFAULT 0,
			mean_explored REAL NOT NULL,
			mean_hops REAL NOT NULL,
			mean_ticks REAL NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, point_idx, label)
		);`,
		`CREATE TABLE IF NOT EXISTS trials (
			run_id TEXT NOT NULL,
			point_idx INTEGER NOT NULL,
			trial INTEGER NOT NULL,
			label TEXT NOT NULL,
			grid_seed INTEGER NOT NULL,
			fire_seed INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			explored INTEGER NOT NULL,
			hops INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			digest TEXT NOT NULL,
			layout TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, point_idx, trial, label)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trials_outcome ON trials(run_id, label, outcome);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued trial rows and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTrialTotal: s.dropTrialTotal.Load(),
		WriteErrTotal:  s.writeErrTotal.Load(),
		WrittenTotal:   s.writtenTotal.Load(),
	}
}

// RecordRun inserts a run row. cfg is stored as canonical JSON with its digest.
func (s *SQLiteIndex) RecordRun(ctx context.Context, r RunRow, cfg any) error {
	if s == nil || s.closed.Load() {
		return errors.New("index closed")
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	r.ConfigJSON = string(b)
	r.ConfigDigest = hex.EncodeToString(sum[:])
	if r.StartedAt == "" {
		r.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs(run_id,kind,name,dim,seed,flammability,trials,config_json,config_digest,started_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Kind, r.Name, r.Dim, r.Seed, r.Flammability, r.Trials, r.ConfigJSON, r.ConfigDigest, r.StartedAt,
	)
	return err
}

func (s *SQLiteIndex) FinishRun(ctx context.Context, runID string) error {
	if s == nil || s.closed.Load() {
		return errors.New("index closed")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at=? WHERE run_id=?`,
		time.Now().UTC().Format(time.RFC3339Nano), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

func (s *SQLiteIndex) RecordPoint(ctx context.Context, p PointRow) error {
	if s == nil || s.closed.Load() {
		return errors.New("index closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO points(run_id,point_idx,label,density,trials,successes,skipped,mean_explored,mean_hops,mean_ticks,elapsed_ms) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		p.RunID, p.PointIdx, p.Label, p.Density, p.Trials, p.Successes, p.Skipped, p.MeanExplored, p.MeanHops, p.MeanTicks, p.ElapsedMS,
	)
	return err
}

// WriteTrial queues a trial row. It never blocks.
func (s *SQLiteIndex) WriteTrial(t TrialRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- t:
	default:
		// Point aggregates are still exact; only per-trial detail is lost.
		s.dropTrialTotal.Add(1)
	}
}

// Runs lists the most recent runs first.
func (s *SQLiteIndex) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id,kind,name,dim,seed,flammability,trials,config_digest,started_at,COALESCE(finished_at,'') FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.Kind, &r.Name, &r.Dim, &r.Seed, &r.Flammability, &r.Trials, &r.ConfigDigest, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Points(ctx context.Context, runID string) ([]PointRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id,point_idx,label,density,trials,successes,skipped,mean_explored,mean_hops,mean_ticks,elapsed_ms FROM points WHERE run_id=? ORDER BY label, point_idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PointRow
	for rows.Next() {
		var p PointRow
		if err := rows.Scan(&p.RunID, &p.PointIdx, &p.Label, &p.Density, &p.Trials, &p.Successes, &p.Skipped, &p.MeanExplored, &p.MeanHops, &p.MeanTicks, &p.ElapsedMS); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Run loads one run including its stored configuration.
func (s *SQLiteIndex) Run(ctx context.Context, runID string) (RunRow, error) {
	var r RunRow
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id,kind,name,dim,seed,flammability,trials,config_json,config_digest,started_at,COALESCE(finished_at,'') FROM runs WHERE run_id=?`, runID,
	).Scan(&r.RunID, &r.Kind, &r.Name, &r.Dim, &r.Seed, &r.Flammability, &r.Trials, &r.ConfigJSON, &r.ConfigDigest, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return RunRow{}, fmt.Errorf("run %s: %w", runID, err)
	}
	return r, nil
}

// Trial loads a single trial row.
func (s *SQLiteIndex) Trial(ctx context.Context, runID string, pointIdx, trial int, label string) (TrialRow, error) {
	t := TrialRow{RunID: runID, PointIdx: pointIdx, Trial: trial, Label: label}
	err := s.db.QueryRowContext(ctx,
		`SELECT grid_seed,fire_seed,outcome,explored,hops,ticks,digest,layout FROM trials WHERE run_id=? AND point_idx=? AND trial=? AND label=?`,
		runID, pointIdx, trial, label,
	).Scan(&t.GridSeed, &t.FireSeed, &t.Outcome, &t.Explored, &t.Hops, &t.Ticks, &t.Digest, &t.Layout)
	if err != nil {
		return TrialRow{}, fmt.Errorf("trial %s/%d/%d/%s: %w", runID, pointIdx, trial, label, err)
	}
	return t, nil
}

// OutcomeCounts tallies trial outcomes per label for a run.
func (s *SQLiteIndex) OutcomeCounts(ctx context.Context, runID string) (map[string]map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label,outcome,COUNT(*) FROM trials WHERE run_id=? GROUP BY label,outcome`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]map[string]int{}
	for rows.Next() {
		var label, outcome string
		var n int
		if err := rows.Scan(&label, &outcome, &n); err != nil {
			return nil, err
		}
		if out[label] == nil {
			out[label] = map[string]int{}
		}
		out[label][outcome] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTrial, _ := s.db.Prepare(`INSERT OR REPLACE INTO trials(run_id,point_idx,trial,label,grid_seed,fire_seed,outcome,explored,hops,ticks,digest,layout) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTrial != nil {
			_ = insertTrial.Close()
		}
	}()

	var (
		tx            *sql.Tx
		pending       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		pending = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrTotal.Add(uint64(pending))
		} else {
			s.writtenTotal.Add(uint64(pending))
		}
		tx = nil
		pending = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertTrial == nil {
			s.writeErrTotal.Add(1)
			continue
		}
		if _, err := tx.Stmt(insertTrial).Exec(
			r.RunID, r.PointIdx, r.Trial, r.Label, r.GridSeed, r.FireSeed,
			r.Outcome, r.Explored, r.Hops, r.Ticks, r.Digest, r.Layout,
		); err != nil {
			s.writeErrTotal.Add(1)
			continue
		}
		pending++
		// Commit when idle too: synchronous writers share the single connection.
		if len(s.ch) == 0 || pending >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}
