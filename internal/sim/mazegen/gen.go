package mazegen

import (
	"errors"
	"fmt"

	"firemaze.ai/internal/sim/grid"
	"firemaze.ai/internal/sim/logic/mathx"
	"firemaze.ai/internal/sim/search"
)

var ErrUnsolvable = errors.New("no solvable maze within attempt budget")

// Generate builds an n×n maze where every cell other than the start and the goal
// is an obstacle with probability p. The same (n, p, seed) always yields the same
// maze.
func Generate(n int, p float64, seed int64) (*grid.Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("maze dimension %d: must be >= 2", n)
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("obstacle density %v: must be within [0,1]", p)
	}
	g, err := grid.New(n)
	if err != nil {
		return nil, err
	}
	start, goal := g.Start(), g.Goal()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			pos := grid.Pos{Row: r, Col: c}
			if pos == start || pos == goal {
				continue
			}
			if mathx.Unit(mathx.Hash2(seed, r, c)) < p {
				g.Put(pos, grid.Obstacle)
			}
		}
	}
	return g, nil
}

// GenerateSolvable keeps drawing mazes from seeds derived from seed until one has
// a start-to-goal path. It returns the maze and the seed that produced it.
func GenerateSolvable(n int, p float64, seed int64, maxAttempts int) (*grid.Grid, int64, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	s := seed
	for attempt := 0; attempt < maxAttempts; attempt++ {
		g, err := Generate(n, p, s)
		if err != nil {
			return nil, 0, err
		}
		if search.Reachable(g) {
			return g, s, nil
		}
		s = mathx.Derive(seed, attempt+1, n)
	}
	return nil, 0, fmt.Errorf("n=%d p=%v after %d attempts: %w", n, p, maxAttempts, ErrUnsolvable)
}
