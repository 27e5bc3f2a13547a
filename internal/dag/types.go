package dag

// LoadOrder is an ordered sequence of mod ids in which every hard
// dependency precedes its dependents.
type LoadOrder []string

// EdgeKind distinguishes how two mods are related in the graph.
type EdgeKind int

const (
	// HardRequired edges come from dependency declarations; the target must
	// load before the source and must exist.
	HardRequired EdgeKind = iota
	// SoftAfter edges come from load_after hints.
	SoftAfter
	// SoftBefore edges come from load_before hints.
	SoftBefore
)

// String returns a human-readable edge kind for logs.
func (k EdgeKind) String() string {
	switch k {
	case HardRequired:
		return "hard"
	case SoftAfter:
		return "load_after"
	case SoftBefore:
		return "load_before"
	}
	return "unknown"
}

// node is a single vertex of the resolution graph. It is unexported; the
// graph is built fresh per resolution call and discarded after the sort.
type node struct {
	// id is the mod's unique identifier.
	id string
	// index is the mod's discovery index, used for deterministic tie-breaks.
	index int
	// deps maps predecessor ids (mods that must load first) to edge kind.
	deps map[string]EdgeKind
	// dependents holds the set of successor ids.
	dependents map[string]struct{}
}

// graph is the per-resolution dependency graph.
type graph struct {
	// nodes stores all vertices keyed by mod id.
	nodes map[string]*node
	// order lists mod ids in discovery order.
	order []string
}

func newGraph() *graph {
	return &graph{nodes: make(map[string]*node)}
}

// addNode registers a vertex; repeated ids are ignored, mirroring the
// scanner's first-occurrence-wins contract.
func (g *graph) addNode(id string, index int) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		index:      index,
		deps:       make(map[string]EdgeKind),
		dependents: make(map[string]struct{}),
	}
	g.order = append(g.order, id)
}

// addEdge records that `from` must load before `to`. Self-referential edges
// are allowed here so that a self-dependency surfaces through cycle
// detection with a proper chain report rather than an ad-hoc error.
func (g *graph) addEdge(from, to string, kind EdgeKind) {
	toNode := g.nodes[to]
	if _, exists := toNode.deps[from]; exists {
		return
	}
	toNode.deps[from] = kind
	g.nodes[from].dependents[to] = struct{}{}
}

// reachable reports whether `target` can be reached from `start` by
// following dependency edges backwards (dep -> dependent direction).
func (g *graph) reachable(start, target string) bool {
	if start == target {
		return true
	}
	visited := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for dependent := range g.nodes[id].dependents {
			if dependent == target {
				return true
			}
			stack = append(stack, dependent)
		}
	}
	return false
}
