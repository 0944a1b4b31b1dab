package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"firemaze.ai/internal/persistence/indexdb"
	"firemaze.ai/internal/sim/encoding"
	"firemaze.ai/internal/sim/fire"
	"firemaze.ai/internal/sim/grid"
	"firemaze.ai/internal/sim/mazegen"
	"firemaze.ai/internal/sim/strategy"
	"firemaze.ai/internal/sim/tuning"
)

var ErrDigestMismatch = errors.New("regenerated maze digest mismatch")

// TrialID names a fire trial in tick logs.
func TrialID(pointIdx, trial int) string {
	return fmt.Sprintf("p%d-t%d", pointIdx, trial)
}

func ParseTrialID(s string) (pointIdx, trial int, err error) {
	if _, err := fmt.Sscanf(s, "p%d-t%d", &pointIdx, &trial); err != nil {
		return 0, 0, fmt.Errorf("trial id %q: %w", s, err)
	}
	if pointIdx < 0 || trial < 0 || TrialID(pointIdx, trial) != s {
		return 0, 0, fmt.Errorf("trial id %q: malformed", s)
	}
	return pointIdx, trial, nil
}

// Replay is a fire trial rebuilt from the seeds stored in the index.
type Replay struct {
	Run     indexdb.RunRow
	Trial   indexdb.TrialRow
	Density float64
	Initial *grid.Grid // maze with the initial fire, before any move
	Outcome strategy.Outcome
	Ticks   []strategy.TickEntry
}

type collectSink struct{ entries []strategy.TickEntry }

func (s *collectSink) WriteTick(e strategy.TickEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

// ReplayTrial regenerates one fire trial and runs its strategy again.
func ReplayTrial(ctx context.Context, idx *indexdb.SQLiteIndex, runID, trialID, label string) (Replay, error) {
	pointIdx, trial, err := ParseTrialID(trialID)
	if err != nil {
		return Replay{}, err
	}
	run, err := idx.Run(ctx, runID)
	if err != nil {
		return Replay{}, err
	}
	if run.Kind != string(KindFire) {
		return Replay{}, fmt.Errorf("run %s is a %s sweep; only fire runs replay", runID, run.Kind)
	}
	cfg := tuning.Defaults()
	if err := json.Unmarshal([]byte(run.ConfigJSON), &cfg); err != nil {
		return Replay{}, fmt.Errorf("run %s config: %w", runID, err)
	}
	points := cfg.Density.Points()
	if pointIdx >= len(points) {
		return Replay{}, fmt.Errorf("run %s has %d density points, not %d", runID, len(points), pointIdx+1)
	}
	tr, err := idx.Trial(ctx, runID, pointIdx, trial, label)
	if err != nil {
		return Replay{}, err
	}

	g, err := mazegen.Generate(run.Dim, points[pointIdx], tr.GridSeed)
	if err != nil {
		return Replay{}, err
	}
	if _, err := fire.Ignite(g, tr.FireSeed); err != nil {
		return Replay{}, err
	}
	if d := g.Digest(); d != tr.Digest {
		return Replay{}, fmt.Errorf("%s/%s: got %s want %s: %w", trialID, label, d, tr.Digest, ErrDigestMismatch)
	}
	if tr.Layout != "" {
		stored, err := encoding.DecodeGrid(run.Dim, tr.Layout)
		if err != nil {
			return Replay{}, fmt.Errorf("%s/%s layout: %w", trialID, label, err)
		}
		if stored.Digest() != tr.Digest {
			return Replay{}, fmt.Errorf("%s/%s: stored layout disagrees with digest: %w", trialID, label, ErrDigestMismatch)
		}
	}

	st, ok := strategy.Lookup(label)
	if !ok {
		return Replay{}, fmt.Errorf("unknown strategy %q", label)
	}
	sink := &collectSink{}
	out, err := st.Run(g, strategy.Config{
		Q:        run.Flammability,
		FireSeed: tr.FireSeed,
		MaxTicks: cfg.MaxTicks,
		TrialID:  trialID,
		Sink:     sink,
	})
	if err != nil {
		return Replay{}, err
	}
	return Replay{
		Run:     run,
		Trial:   tr,
		Density: points[pointIdx],
		Initial: g,
		Outcome: out,
		Ticks:   sink.entries,
	}, nil
}

// VerifyTicks compares a recorded tick stream with a replayed one and reports
// the first divergence.
func VerifyTicks(recorded, replayed []strategy.TickEntry) error {
	if len(recorded) != len(replayed) {
		return fmt.Errorf("tick count: recorded %d replayed %d", len(recorded), len(replayed))
	}
	for i := range recorded {
		a, b := recorded[i], replayed[i]
		if a.Tick != b.Tick || a.Agent != b.Agent || a.Event != b.Event ||
			a.Burning != b.Burning || a.PlanHops != b.PlanHops || len(a.Ignited) != len(b.Ignited) {
			return fmt.Errorf("tick %d diverges: recorded %+v replayed %+v", a.Tick, a, b)
		}
		for j := range a.Ignited {
			if a.Ignited[j] != b.Ignited[j] {
				return fmt.Errorf("tick %d ignition %d: recorded %s replayed %s", a.Tick, j, a.Ignited[j], b.Ignited[j])
			}
		}
	}
	return nil
}
