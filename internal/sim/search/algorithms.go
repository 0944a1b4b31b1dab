package search

import (
	"sort"

	"firemaze.ai/internal/sim/grid"
)

// PathFunc is a search that produces a start-to-goal path.
type PathFunc func(g *grid.Grid) (Result, error)

const (
	AlgoDFS   = "dfs"
	AlgoBFS   = "bfs"
	AlgoAStar = "astar"
)

var pathFinders = map[string]PathFunc{
	AlgoBFS:   ShortestPath,
	AlgoAStar: AStar,
}

// PathFinder looks up a path-producing search by name.
func PathFinder(name string) (PathFunc, bool) {
	f, ok := pathFinders[name]
	return f, ok
}

// PathFinderNames lists the registered path searches in sorted order.
func PathFinderNames() []string {
	names := make([]string, 0, len(pathFinders))
	for k := range pathFinders {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
