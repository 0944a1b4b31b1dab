package search

// frontierItem is a heap entry for the informed search.
type frontierItem struct {
	node  *PathNode
	seq   int
	index int
}

// frontier is a min-heap on Score. Equal scores prefer the smaller Distance, then
// the earlier insertion, which keeps the search optimal on unit-cost grids and
// deterministic in tests.
type frontier []*frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	a, b := f[i].node, f[j].node
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

func (f *frontier) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*f)
	*f = append(*f, item)
}

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*f = old[:n-1]
	return item
}
