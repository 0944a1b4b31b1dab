package strategy

import (
	"errors"
	"fmt"
	"sort"

	"firemaze.ai/internal/sim/fire"
	"firemaze.ai/internal/sim/grid"
	"firemaze.ai/internal/sim/search"
)

const (
	ReasonEscaped = "escaped"
	ReasonBurned  = "burned"
	ReasonTrapped = "trapped"
	ReasonTimeout = "timeout"
)

// TickEntry is one step of an agent run: the agent moved, then fire advanced.
type TickEntry struct {
	Trial    string     `json:"trial,omitempty"`
	Strategy string     `json:"strategy"`
	Tick     int        `json:"tick"`
	Agent    grid.Pos   `json:"agent"`
	Ignited  []grid.Pos `json:"ignited,omitempty"`
	Burning  int        `json:"burning"`
	PlanHops int        `json:"plan_hops"`
	Event    string     `json:"event,omitempty"`
}

type TickSink interface {
	WriteTick(TickEntry) error
}

// Config parameterizes one run.
type Config struct {
	Q        float64
	FireSeed int64
	MaxTicks int // 0 means 4·N²
	TrialID  string
	Sink     TickSink
}

// Outcome summarizes a run.
type Outcome struct {
	Survived bool     `json:"survived"`
	Reason   string   `json:"reason"`
	Ticks    int      `json:"ticks"` // agent moves
	Final    grid.Pos `json:"final"`
	Plans    int      `json:"plans"`
	Burning  int      `json:"burning"`
}

// Strategy moves an agent from the start to the goal while fire spreads.
// Run works on its own copy of g; g must already contain the initial fire.
type Strategy interface {
	Name() string
	Run(g *grid.Grid, cfg Config) (Outcome, error)
}

// planner chooses the agent's next path given the live grid.
type planner interface {
	plan(live *grid.Grid, agent grid.Pos) (search.Path, bool, error)
}

func run(name string, g *grid.Grid, cfg Config, pl planner) (Outcome, error) {
	live := g.Copy()
	sim, err := fire.NewSimulator(cfg.Q, cfg.FireSeed)
	if err != nil {
		return Outcome{}, err
	}
	maxTicks := cfg.MaxTicks
	if maxTicks <= 0 {
		maxTicks = 4 * live.Dim() * live.Dim()
	}

	agent := live.Start()
	goal := live.Goal()
	out := Outcome{Final: agent}
	var path search.Path
	step, moves := 0, 0
	emit := func(e TickEntry) error {
		if cfg.Sink == nil {
			return nil
		}
		e.Trial = cfg.TrialID
		e.Strategy = name
		e.Agent = agent
		e.Burning = live.Count(grid.OnFire)
		if err := cfg.Sink.WriteTick(e); err != nil {
			return fmt.Errorf("write tick %d: %w", e.Tick, err)
		}
		return nil
	}
	finish := func(reason string) Outcome {
		out.Reason = reason
		out.Survived = reason == ReasonEscaped
		out.Final = agent
		out.Ticks = moves
		out.Burning = live.Count(grid.OnFire)
		return out
	}
	// terminal records the final tick entry and closes the run.
	terminal := func(tick, hops int, reason string) (Outcome, error) {
		if err := emit(TickEntry{Tick: tick, PlanHops: hops, Event: reason}); err != nil {
			return Outcome{}, err
		}
		return finish(reason), nil
	}

	for tick := 0; ; tick++ {
		if agent == goal {
			return terminal(tick, path.Hops(), ReasonEscaped)
		}
		if tick >= maxTicks {
			return terminal(tick, path.Hops(), ReasonTimeout)
		}

		next, fresh, err := pl.plan(live, agent)
		if errors.Is(err, search.ErrUnreachable) {
			return terminal(tick, 0, ReasonTrapped)
		}
		if err != nil {
			return Outcome{}, err
		}
		if fresh {
			path, step = next, 0
			out.Plans++
		}
		if step+1 >= len(path) {
			return terminal(tick, path.Hops(), ReasonTrapped)
		}

		step++
		moves++
		agent = path[step]
		if live.At(agent) == grid.OnFire {
			return terminal(tick, path.Hops(), ReasonBurned)
		}
		if agent == goal {
			return terminal(tick, path.Hops(), ReasonEscaped)
		}

		ignited := sim.Step(live)
		if live.At(agent) == grid.OnFire {
			if err := emit(TickEntry{Tick: tick, Ignited: ignited, PlanHops: path.Hops(), Event: ReasonBurned}); err != nil {
				return Outcome{}, err
			}
			return finish(ReasonBurned), nil
		}
		if err := emit(TickEntry{Tick: tick, Ignited: ignited, PlanHops: path.Hops()}); err != nil {
			return Outcome{}, err
		}
	}
}

// FollowPlan computes one shortest path on the initial fire grid and follows it
// without looking at the fire again.
type FollowPlan struct{}

func (FollowPlan) Name() string { return "follow_plan" }

func (s FollowPlan) Run(g *grid.Grid, cfg Config) (Outcome, error) {
	return run(s.Name(), g, cfg, &oncePlanner{})
}

type oncePlanner struct{ done bool }

func (p *oncePlanner) plan(live *grid.Grid, agent grid.Pos) (search.Path, bool, error) {
	if p.done {
		return nil, false, nil
	}
	p.done = true
	res, err := search.ShortestPathFrom(live, agent)
	if err != nil {
		return nil, false, err
	}
	return res.Path, true, nil
}

// Replan recomputes the shortest path from the agent's cell on every tick,
// treating burning cells as walls.
type Replan struct{}

func (Replan) Name() string { return "replan" }

func (s Replan) Run(g *grid.Grid, cfg Config) (Outcome, error) {
	return run(s.Name(), g, cfg, replanner{})
}

type replanner struct{}

func (replanner) plan(live *grid.Grid, agent grid.Pos) (search.Path, bool, error) {
	res, err := search.ShortestPathFrom(live, agent)
	if err != nil {
		return nil, false, err
	}
	return res.Path, true, nil
}

var registry = map[string]Strategy{
	FollowPlan{}.Name(): FollowPlan{},
	Replan{}.Name():     Replan{},
}

// Lookup returns the strategy registered under name.
func Lookup(name string) (Strategy, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names lists registered strategies in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
