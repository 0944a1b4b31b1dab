package search

import "firemaze.ai/internal/sim/grid"

// PathNode records how a search first reached a cell. Nodes are never mutated
// after they are stored in a nodeIndex.
type PathNode struct {
	Pos      grid.Pos
	Distance float64 // g: hops for BFS/DFS, accumulated travel cost for A*
	Score    float64 // f = g + h; zero outside A*

	prev *PathNode
}

// Prev is the node this one was discovered from, nil for the start node.
func (n *PathNode) Prev() *PathNode {
	if n == nil {
		return nil
	}
	return n.prev
}

// nodeIndex owns every PathNode a search creates: one arena slot per cell,
// addressed through a same-shape index grid. Back links point into the arena.
type nodeIndex struct {
	n     int
	slots []*PathNode
	arena []PathNode
}

func newNodeIndex(n int) *nodeIndex {
	return &nodeIndex{
		n:     n,
		slots: make([]*PathNode, n*n),
		// Full capacity up front so appends never move nodes that are already linked.
		arena: make([]PathNode, 0, n*n),
	}
}

func (ix *nodeIndex) at(p grid.Pos) *PathNode {
	return ix.slots[p.Row*ix.n+p.Col]
}

// add stores the first node discovered for p. A second discovery of the same cell
// is a search bug and returns the existing node unchanged.
func (ix *nodeIndex) add(p grid.Pos, dist, score float64, prev *PathNode) *PathNode {
	i := p.Row*ix.n + p.Col
	if ix.slots[i] != nil {
		return ix.slots[i]
	}
	ix.arena = append(ix.arena, PathNode{Pos: p, Distance: dist, Score: score, prev: prev})
	node := &ix.arena[len(ix.arena)-1]
	ix.slots[i] = node
	return node
}

func (ix *nodeIndex) len() int { return len(ix.arena) }
