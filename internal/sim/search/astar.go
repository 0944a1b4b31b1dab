package search

import (
	"container/heap"

	"firemaze.ai/internal/sim/grid"
)

// AStar searches from the start cell to the goal cell ordered by
// f = g + h, where g is the travel cost accumulated along the discovered path and
// h is the straight-line distance to the goal.
//
// Cells are marked Visited when first discovered and are never re-scored. That is
// only sound because every move costs the same; a weighted grid would need
// settle-on-pop with relaxation instead.
func AStar(g *grid.Grid) (Result, error) {
	work := g.Copy()
	start, goal := work.Start(), work.Goal()
	index := newNodeIndex(work.Dim())

	open := make(frontier, 0, 256)
	heap.Init(&open)
	seq := 0
	push := func(n *PathNode) {
		heap.Push(&open, &frontierItem{node: n, seq: seq})
		seq++
	}

	work.Put(start, grid.Visited)
	push(index.add(start, 0, distTwoPoints(start, goal), nil))

	for open.Len() > 0 {
		item := heap.Pop(&open).(*frontierItem).node
		if item.Pos == goal {
			return finish(item, work, index)
		}
		for _, np := range work.Neighbors4(item.Pos) {
			if work.At(np) != grid.Empty {
				continue
			}
			work.Put(np, grid.Visited)
			gScore := item.Distance + distTwoPoints(item.Pos, np)
			push(index.add(np, gScore, gScore+distTwoPoints(np, goal), item))
		}
	}
	return Result{Explored: index.len()}, ErrUnreachable
}
