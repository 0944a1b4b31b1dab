package search

import "firemaze.ai/internal/sim/grid"

// Reachable reports whether the goal can be reached from the start.
func Reachable(g *grid.Grid) bool {
	ok, _ := ReachableStats(g)
	return ok
}

// ReachableStats runs the depth-first traversal on a private copy of g and also
// returns how many cells it visited. The traversal stops as soon as the goal is
// visited.
func ReachableStats(g *grid.Grid) (bool, int) {
	work := g.Copy()
	goal := work.Goal()

	// Explicit stack: recursion depth would otherwise grow with the grid area.
	stack := make([]grid.Pos, 0, 64)
	stack = append(stack, work.Start())
	visited := 0

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if work.At(p) == grid.Visited {
			continue
		}
		work.Put(p, grid.Visited)
		visited++
		if p == goal {
			return true, visited
		}

		nbs := work.Neighbors4(p)
		// Push in reverse so neighbors are expanded in Neighbors4 order.
		for i := len(nbs) - 1; i >= 0; i-- {
			if work.At(nbs[i]) == grid.Empty {
				stack = append(stack, nbs[i])
			}
		}
	}
	return false, visited
}
