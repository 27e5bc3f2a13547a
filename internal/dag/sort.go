package dag

import "sort"

// topoSort runs Kahn's algorithm over the graph. The ready queue is kept
// ordered by (discovery index, id) so that mods with no ordering
// relationship always appear in the same relative position across runs.
// The graph must already be acyclic.
func (g *graph) topoSort() LoadOrder {
	remaining := make(map[string]int, len(g.nodes))
	var ready []*node
	for _, id := range g.order {
		n := g.nodes[id]
		remaining[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, n)
		}
	}
	sortReady(ready)

	order := make(LoadOrder, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n.id)

		unlocked := false
		for _, depID := range sortedKeys(n.dependents) {
			remaining[depID]--
			if remaining[depID] == 0 {
				ready = append(ready, g.nodes[depID])
				unlocked = true
			}
		}
		if unlocked {
			sortReady(ready)
		}
	}

	// findCycle runs before sorting, so every node must have been emitted.
	if len(order) != len(g.nodes) {
		panic("dag: topological sort on cyclic graph")
	}
	return order
}

// sortReady orders the tie-break queue by discovery index, then id. The id
// comparison only matters for nodes injected outside a real scan, where
// discovery indexes may collide.
func sortReady(ready []*node) {
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].index != ready[j].index {
			return ready[i].index < ready[j].index
		}
		return ready[i].id < ready[j].id
	})
}
