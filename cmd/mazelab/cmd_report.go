package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"firemaze.ai/internal/persistence/indexdb"
	"firemaze.ai/internal/sim/experiment"
)

var (
	reportRun   string
	reportLimit int
	reportJSON  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List recorded runs or print the per-density table of one run",
	Long: `Without --run, lists the most recent runs in the index. With --run, prints the
aggregated points of that run and the outcome counts of its trials. --run latest
selects the newest run.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRun, "run", "", "run id, or 'latest'")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "runs to list")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print JSON lines")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := indexdb.OpenSQLite(indexPath(cfg.DataDir))
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if reportRun == "" {
		runs, err := idx.Runs(ctx, reportLimit)
		if err != nil {
			return err
		}
		if reportJSON {
			for _, r := range runs {
				printJSON(out, r)
			}
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tKIND\tNAME\tDIM\tTRIALS\tQ\tSTARTED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.2f\t%s\n",
				r.RunID, r.Kind, r.Name, r.Dim, humanize.Comma(int64(r.Trials)), r.Flammability, started(r.StartedAt))
		}
		return tw.Flush()
	}

	runID := reportRun
	if runID == "latest" {
		runs, err := idx.Runs(ctx, 1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs recorded in %s", indexPath(cfg.DataDir))
		}
		runID = runs[0].RunID
	}
	run, err := idx.Run(ctx, runID)
	if err != nil {
		return err
	}
	rows, err := idx.Points(ctx, runID)
	if err != nil {
		return err
	}
	counts, err := idx.OutcomeCounts(ctx, runID)
	if err != nil {
		return err
	}
	if reportJSON {
		printJSON(out, run)
		for _, p := range rows {
			printJSON(out, p)
		}
		printJSON(out, counts)
		return nil
	}

	fmt.Fprintf(out, "run %s: %s sweep %q n=%d q=%.2f seed=%d (%s)\n",
		run.RunID, run.Kind, run.Name, run.Dim, run.Flammability, run.Seed, started(run.StartedAt))
	pts := make([]experiment.Point, 0, len(rows))
	for _, r := range rows {
		pts = append(pts, experiment.Point{
			Idx: r.PointIdx, Density: r.Density, Label: r.Label,
			Trials: r.Trials, Successes: r.Successes, Skipped: r.Skipped,
			MeanExplored: r.MeanExplored, MeanHops: r.MeanHops, MeanTicks: r.MeanTicks,
			Elapsed: time.Duration(r.ElapsedMS) * time.Millisecond,
		})
	}
	kind, err := experiment.ParseKind(run.Kind)
	if err != nil {
		return err
	}
	printPoints(out, kind, pts)

	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		outcomes := make([]string, 0, len(counts[l]))
		for o := range counts[l] {
			outcomes = append(outcomes, o)
		}
		sort.Strings(outcomes)
		fmt.Fprintf(out, "%s:", l)
		for _, o := range outcomes {
			fmt.Fprintf(out, " %s=%s", o, humanize.Comma(int64(counts[l][o])))
		}
		fmt.Fprintln(out)
	}
	return nil
}

// printPoints writes a per-density table grouped by label.
func printPoints(w io.Writer, kind experiment.Kind, pts []experiment.Point) {
	sorted := append([]experiment.Point(nil), pts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Label != sorted[j].Label {
			return sorted[i].Label < sorted[j].Label
		}
		return sorted[i].Idx < sorted[j].Idx
	})
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', tabwriter.AlignRight)
	switch kind {
	case experiment.KindFire:
		fmt.Fprintln(tw, "STRATEGY\tP\tTRIALS\tSURVIVED\tRATE\tMOVES\tSKIPPED\t")
		for _, p := range sorted {
			fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%.1f%%\t%.1f\t%d\t\n",
				p.Label, p.Density, humanize.Comma(int64(p.Trials)), humanize.Comma(int64(p.Successes)),
				100*p.Rate(), p.MeanTicks, p.Skipped)
		}
	default:
		fmt.Fprintln(tw, "ALGO\tP\tTRIALS\tREACHABLE\tEXPLORED\tHOPS\tTIME\t")
		for _, p := range sorted {
			fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.1f%%\t%s\t%.1f\t%s\t\n",
				p.Label, p.Density, humanize.Comma(int64(p.Trials)), 100*p.Rate(),
				humanize.CommafWithDigits(p.MeanExplored, 1), p.MeanHops, p.Elapsed.Round(time.Microsecond))
		}
	}
	_ = tw.Flush()
}

func started(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func printJSON(w io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(w, string(b))
}
