package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firemaze.ai/internal/sim/grid"
)

const (
	E = grid.Empty
	O = grid.Obstacle
	F = grid.OnFire
)

type memSink struct {
	entries []TickEntry
	fail    error
}

func (m *memSink) WriteTick(e TickEntry) error {
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, e)
	return nil
}

func mustGrid(t *testing.T, rows [][]grid.CellState) *grid.Grid {
	t.Helper()
	g, err := grid.FromRows(rows)
	require.NoError(t, err)
	return g
}

// containedFire has a fire walled in by obstacles, so it can never spread.
func containedFire(t *testing.T) *grid.Grid {
	return mustGrid(t, [][]grid.CellState{
		{E, E, E, E},
		{E, E, E, E},
		{O, E, E, E},
		{F, O, E, E},
	})
}

func TestContainedFire_BothStrategiesEscape(t *testing.T) {
	for _, s := range []Strategy{FollowPlan{}, Replan{}} {
		g := containedFire(t)
		before := g.Digest()
		sink := &memSink{}

		out, err := s.Run(g, Config{Q: 0.9, FireSeed: 1, TrialID: "t1", Sink: sink})
		require.NoError(t, err, s.Name())

		assert.True(t, out.Survived, s.Name())
		assert.Equal(t, ReasonEscaped, out.Reason)
		assert.Equal(t, 6, out.Ticks)
		assert.Equal(t, g.Goal(), out.Final)
		assert.Equal(t, 1, out.Burning)
		assert.Equal(t, before, g.Digest(), "run must not mutate the caller's grid")

		require.Len(t, sink.entries, 6)
		last := sink.entries[len(sink.entries)-1]
		assert.Equal(t, ReasonEscaped, last.Event)
		assert.Equal(t, g.Goal(), last.Agent)
		for i, e := range sink.entries {
			assert.Equal(t, i, e.Tick)
			assert.Equal(t, "t1", e.Trial)
			assert.Equal(t, s.Name(), e.Strategy)
		}
	}
}

func TestPlanCounts(t *testing.T) {
	out, err := FollowPlan{}.Run(containedFire(t), Config{Q: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Plans)

	out, err = Replan{}.Run(containedFire(t), Config{Q: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 6, out.Plans)
}

func TestNoInitialPath_Trapped(t *testing.T) {
	g := mustGrid(t, [][]grid.CellState{
		{E, O, E},
		{O, F, E},
		{E, E, E},
	})
	for _, s := range []Strategy{FollowPlan{}, Replan{}} {
		out, err := s.Run(g, Config{Q: 0.3})
		require.NoError(t, err)
		assert.False(t, out.Survived)
		assert.Equal(t, ReasonTrapped, out.Reason)
		assert.Equal(t, 0, out.Ticks)
		assert.Equal(t, 0, out.Plans)
	}
}

func TestFireNextToEveryFirstMove_Burns(t *testing.T) {
	g := mustGrid(t, [][]grid.CellState{
		{E, E, E},
		{E, F, E},
		{E, E, E},
	})
	for _, s := range []Strategy{FollowPlan{}, Replan{}} {
		sink := &memSink{}
		out, err := s.Run(g, Config{Q: 0.999999, FireSeed: 11, Sink: sink})
		require.NoError(t, err)
		assert.False(t, out.Survived)
		assert.Equal(t, ReasonBurned, out.Reason, s.Name())
		assert.Equal(t, 1, out.Ticks)
		require.NotEmpty(t, sink.entries)
		assert.Equal(t, ReasonBurned, sink.entries[len(sink.entries)-1].Event)
	}
}

func TestMaxTicks_Timeout(t *testing.T) {
	out, err := FollowPlan{}.Run(containedFire(t), Config{Q: 0.5, MaxTicks: 1})
	require.NoError(t, err)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Equal(t, 1, out.Ticks)
	assert.False(t, out.Survived)
}

func TestSingleCellGrid_EscapesImmediately(t *testing.T) {
	g, err := grid.New(1)
	require.NoError(t, err)
	out, err := Replan{}.Run(g, Config{Q: 0.5})
	require.NoError(t, err)
	assert.True(t, out.Survived)
	assert.Equal(t, 0, out.Ticks)
}

func TestRun_Errors(t *testing.T) {
	_, err := FollowPlan{}.Run(containedFire(t), Config{Q: 0})
	assert.Error(t, err)

	boom := errors.New("disk full")
	_, err = Replan{}.Run(containedFire(t), Config{Q: 0.5, Sink: &memSink{fail: boom}})
	assert.ErrorIs(t, err, boom)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"follow_plan", "replan"}, Names())
	s, ok := Lookup("replan")
	require.True(t, ok)
	assert.Equal(t, "replan", s.Name())
	_, ok = Lookup("teleport")
	assert.False(t, ok)
}
