package fire

import (
	"errors"
	"fmt"
	"math"

	"firemaze.ai/internal/sim/grid"
	"firemaze.ai/internal/sim/logic/mathx"
)

var ErrNoIgnitionSite = errors.New("no empty cell available to ignite")

// IgnitionProbability is the chance that a flammable cell with k burning
// neighbors catches fire in one step: 1 - (1-q)^k.
func IgnitionProbability(q float64, k int) float64 {
	if k <= 0 {
		return 0
	}
	return 1 - math.Pow(1-q, float64(k))
}

// BurningNeighbors counts the 4-connected neighbors of p that are on fire.
func BurningNeighbors(g *grid.Grid, p grid.Pos) int {
	k := 0
	for _, np := range g.Neighbors4(p) {
		if g.At(np) == grid.OnFire {
			k++
		}
	}
	return k
}

func flammable(s grid.CellState) bool {
	return s != grid.Obstacle && s != grid.OnFire
}

// Simulator advances fire over a grid one discrete tick at a time. Draws are
// hashed from (Seed, tick, row, col), so a run is reproducible from its seed.
type Simulator struct {
	Q    float64
	Seed int64

	tick int
}

func NewSimulator(q float64, seed int64) (*Simulator, error) {
	if !(q > 0 && q < 1) {
		return nil, fmt.Errorf("flammability %v: must be within (0,1)", q)
	}
	return &Simulator{Q: q, Seed: seed}, nil
}

// Tick is the number of steps taken so far.
func (s *Simulator) Tick() int { return s.tick }

// Step mutates g in place by one tick and returns the cells that ignited, in
// row-major order.
func (s *Simulator) Step(g *grid.Grid) []grid.Pos {
	t := s.tick
	ignited := step(g, s.Q, func(p grid.Pos) float64 {
		return mathx.Unit(mathx.Hash3(s.Seed, t, p.Row, p.Col))
	})
	s.tick++
	return ignited
}

// step decides every cell against the pre-step state, then applies all
// ignitions at once.
func step(g *grid.Grid, q float64, draw func(grid.Pos) float64) []grid.Pos {
	var ignited []grid.Pos
	g.Each(func(p grid.Pos, st grid.CellState) {
		if !flammable(st) {
			return
		}
		k := BurningNeighbors(g, p)
		if k == 0 {
			return
		}
		if draw(p) < IgnitionProbability(q, k) {
			ignited = append(ignited, p)
		}
	})
	for _, p := range ignited {
		g.Put(p, grid.OnFire)
	}
	return ignited
}

// SelectIgnition picks an Empty cell other than the start and the goal.
func SelectIgnition(g *grid.Grid, seed int64) (grid.Pos, error) {
	start, goal := g.Start(), g.Goal()
	var candidates []grid.Pos
	g.Each(func(p grid.Pos, st grid.CellState) {
		if st == grid.Empty && p != start && p != goal {
			candidates = append(candidates, p)
		}
	})
	if len(candidates) == 0 {
		return grid.Pos{}, ErrNoIgnitionSite
	}
	i := mathx.Hash2(seed, g.Dim(), len(candidates)) % uint64(len(candidates))
	return candidates[i], nil
}

// Ignite sets the cell chosen by SelectIgnition on fire and returns it.
func Ignite(g *grid.Grid, seed int64) (grid.Pos, error) {
	p, err := SelectIgnition(g, seed)
	if err != nil {
		return grid.Pos{}, err
	}
	g.Put(p, grid.OnFire)
	return p, nil
}
