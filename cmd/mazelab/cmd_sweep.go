package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"firemaze.ai/internal/metrics"
	"firemaze.ai/internal/persistence/indexdb"
	plog "firemaze.ai/internal/persistence/log"
	"firemaze.ai/internal/sim/experiment"
)

var (
	sweepTrials  int
	sweepWorkers int
	sweepSeed    int64
	sweepNoIndex bool
)

var sweepCmd = &cobra.Command{
	Use:       "sweep reach|search|fire",
	Short:     "Run a density sweep and record it in the index",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"reach", "search", "fire"},
	RunE:      runSweep,
}

func init() {
	sweepCmd.Flags().IntVar(&sweepTrials, "trials", 0, "trials per density (overrides config)")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "concurrent trials (overrides config)")
	sweepCmd.Flags().Int64Var(&sweepSeed, "seed", 0, "base seed (overrides config)")
	sweepCmd.Flags().BoolVar(&sweepNoIndex, "no-index", false, "skip the sqlite index and metrics textfile")
}

func runSweep(cmd *cobra.Command, args []string) error {
	kind, err := experiment.ParseKind(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sweepTrials > 0 {
		cfg.Trials = sweepTrials
	}
	if sweepWorkers > 0 {
		cfg.Workers = sweepWorkers
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = sweepSeed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rec := metrics.NewRecorder()
	runner := &experiment.Runner{Cfg: cfg, RunID: experiment.NewRunID(), Metrics: rec, Log: logger}

	if !sweepNoIndex {
		idx, err := indexdb.OpenSQLite(indexPath(cfg.DataDir))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer func() {
			st := idx.Stats()
			if err := idx.Close(); err != nil {
				logger.Printf("index close: %v", err)
			}
			logger.Printf("index: %s trial rows written, %d dropped, %d write errors",
				humanize.Comma(int64(st.WrittenTotal)), st.DropTrialTotal, st.WriteErrTotal)
		}()
		runner.Index = idx
	}

	var ticks *plog.TickLogger
	if cfg.LogTicks && kind == experiment.KindFire {
		ticks = plog.NewTickLogger(cfg.DataDir, runner.RunID)
		runner.Ticks = ticks
	}

	rep, err := runner.Run(ctx, kind)
	if ticks != nil {
		if cerr := ticks.Close(); cerr != nil && err == nil {
			err = cerr
		}
		logger.Printf("tick log: %s (%s entries)", ticks.Path(), humanize.Comma(ticks.Lines()))
	}
	if err != nil {
		return err
	}

	if !sweepNoIndex {
		prom := filepath.Join(cfg.DataDir, "metrics", rep.RunID+".prom")
		if err := os.MkdirAll(filepath.Dir(prom), 0o755); err != nil {
			return err
		}
		if err := rec.WriteTextfile(prom); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Printf("metrics: %s", prom)
	}
	printPoints(cmd.OutOrStdout(), kind, rep.Points)
	return nil
}
