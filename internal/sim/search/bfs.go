package search

import (
	"fmt"

	"firemaze.ai/internal/sim/grid"
)

// ShortestPath returns a minimum-hop path from the start cell to the goal cell,
// or ErrUnreachable.
func ShortestPath(g *grid.Grid) (Result, error) {
	return ShortestPathFrom(g, g.Start())
}

// ShortestPathFrom runs the breadth-first search from an arbitrary cell to the
// goal. g itself is never modified.
func ShortestPathFrom(g *grid.Grid, start grid.Pos) (Result, error) {
	if !g.InBounds(start) {
		return Result{}, fmt.Errorf("bfs start %v: %w", start, grid.ErrOutOfBounds)
	}
	work := g.Copy()
	goal := work.Goal()
	index := newNodeIndex(work.Dim())

	work.Put(start, grid.Visited)
	queue := make([]*PathNode, 0, 256)
	queue = append(queue, index.add(start, 0, 0, nil))

	for head := 0; head < len(queue); head++ {
		item := queue[head]
		if item.Pos == goal {
			return finish(item, work, index)
		}
		for _, np := range work.Neighbors4(item.Pos) {
			if work.At(np) != grid.Empty {
				continue
			}
			work.Put(np, grid.Visited)
			queue = append(queue, index.add(np, item.Distance+1, 0, item))
		}
	}
	return Result{Explored: index.len()}, ErrUnreachable
}

func finish(goal *PathNode, work *grid.Grid, index *nodeIndex) (Result, error) {
	n := work.Dim()
	path, err := Reconstruct(goal, n*n)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Goal: goal, Explored: work.Count(grid.Visited)}, nil
}
