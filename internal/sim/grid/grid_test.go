package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNonPositive(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)

	g, err := New(1)
	require.NoError(t, err)
	assert.Equal(t, g.Start(), g.Goal())
}

func TestCellAt_OutOfBounds(t *testing.T) {
	g, err := New(3)
	require.NoError(t, err)

	for _, p := range []Pos{{-1, 0}, {0, -1}, {3, 0}, {0, 3}, {5, 5}} {
		_, err := g.CellAt(p)
		assert.Truef(t, errors.Is(err, ErrOutOfBounds), "CellAt(%v) err=%v", p, err)
		assert.ErrorIs(t, g.Set(p, Obstacle), ErrOutOfBounds)
	}

	s, err := g.CellAt(Pos{Row: 2, Col: 2})
	require.NoError(t, err)
	assert.Equal(t, Empty, s)
}

func TestCopy_Independent(t *testing.T) {
	g, err := New(4)
	require.NoError(t, err)
	require.NoError(t, g.Set(Pos{Row: 1, Col: 2}, Obstacle))

	c := g.Copy()
	require.NoError(t, c.Set(Pos{Row: 1, Col: 2}, Empty))
	require.NoError(t, c.Set(Pos{Row: 3, Col: 3}, OnFire))

	assert.Equal(t, Obstacle, g.At(Pos{Row: 1, Col: 2}))
	assert.Equal(t, Empty, g.At(Pos{Row: 3, Col: 3}))
	assert.NotEqual(t, g.Digest(), c.Digest())
	assert.Equal(t, g.Digest(), g.Copy().Digest())
}

func TestNeighbors4_OrderAndBounds(t *testing.T) {
	g, err := New(3)
	require.NoError(t, err)

	assert.Equal(t, []Pos{{1, 0}, {0, 1}}, g.Neighbors4(Pos{0, 0}))
	assert.Equal(t, []Pos{{2, 1}, {1, 2}, {1, 0}, {0, 1}}, g.Neighbors4(Pos{1, 1}))
	assert.Equal(t, []Pos{{2, 1}, {1, 2}}, g.Neighbors4(Pos{2, 2}))
}

func TestFromRows(t *testing.T) {
	E, O := Empty, Obstacle
	g, err := FromRows([][]CellState{
		{E, O},
		{E, E},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Dim())
	assert.Equal(t, Obstacle, g.At(Pos{Row: 0, Col: 1}))
	assert.Equal(t, 1, g.Count(Obstacle))

	_, err = FromRows([][]CellState{{E, E}, {E}})
	assert.Error(t, err)
}

func TestCellState_String(t *testing.T) {
	assert.Equal(t, "ON_FIRE", OnFire.String())
	assert.Equal(t, "CellState(9)", CellState(9).String())
}
