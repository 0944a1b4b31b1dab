package search

import (
	"errors"
	"fmt"
	"math"

	"firemaze.ai/internal/sim/grid"
)

var (
	// ErrUnreachable means the goal is not connected to the start. It is an
	// expected outcome, not a failure of the search.
	ErrUnreachable = errors.New("goal unreachable")

	errBrokenChain = errors.New("predecessor chain exceeds grid size")
)

// Path lists positions from start to goal, both inclusive.
type Path []grid.Pos

// Hops is the number of moves along the path.
func (p Path) Hops() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Cost sums the straight-line length of every move.
func (p Path) Cost() float64 {
	total := 0.0
	for i := 1; i < len(p); i++ {
		total += distTwoPoints(p[i-1], p[i])
	}
	return total
}

// Contains reports whether pos is on the path.
func (p Path) Contains(pos grid.Pos) bool {
	for _, q := range p {
		if q == pos {
			return true
		}
	}
	return false
}

// Result is a successful path search.
type Result struct {
	Path     Path
	Goal     *PathNode
	Explored int // cells marked Visited when the search stopped
}

// Reconstruct walks predecessor links back from goal and returns the path in
// start-to-goal order. limit bounds the walk (N² for an N×N grid).
func Reconstruct(goal *PathNode, limit int) (Path, error) {
	if goal == nil {
		return nil, ErrUnreachable
	}
	var rev Path
	for n := goal; n != nil; n = n.Prev() {
		if len(rev) >= limit {
			return nil, fmt.Errorf("reconstruct from %v: %w", goal.Pos, errBrokenChain)
		}
		rev = append(rev, n.Pos)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev, nil
}

func distTwoPoints(a, b grid.Pos) float64 {
	dr := float64(a.Row - b.Row)
	dc := float64(a.Col - b.Col)
	return math.Sqrt(dr*dr + dc*dc)
}
