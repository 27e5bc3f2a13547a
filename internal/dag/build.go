package dag

import (
	"context"
	"sort"

	"github.com/loadstone/loadstone/internal/ctxlog"
	"github.com/loadstone/loadstone/internal/manifest"
)

// ResolveLoadOrder builds the dependency graph for the given descriptors
// and returns a deterministic, valid load order.
//
// Hard dependency edges are validated for presence and version constraints;
// any violation is returned as a structured error. Soft ordering hints
// (load_after / load_before) that would introduce a cycle are dropped with
// a warning instead of failing resolution.
func ResolveLoadOrder(ctx context.Context, descriptors []*manifest.Descriptor) (LoadOrder, error) {
	logger := ctxlog.FromContext(ctx)

	byID := make(map[string]*manifest.Descriptor, len(descriptors))
	g := newGraph()
	for _, d := range descriptors {
		byID[d.ID] = d
		g.addNode(d.ID, d.DiscoveryIndex)
	}

	// Hard edges first. Presence, version and incompatibility violations
	// are fatal at resolution time.
	for _, d := range descriptors {
		for _, dep := range d.Dependencies {
			target, present := byID[dep.ID]
			if !present {
				if dep.Optional {
					logger.Debug("Optional dependency absent, skipping edge.", "mod", d.ID, "dependency", dep.ID)
					continue
				}
				return nil, &MissingDependencyError{ModID: d.ID, MissingID: dep.ID}
			}
			if dep.Constraint != nil && !dep.Constraint.Check(target.Version) {
				return nil, &VersionIncompatibleError{
					ModID:        d.ID,
					DependencyID: dep.ID,
					Constraint:   dep.Constraint.String(),
					Actual:       target.RawVersion,
				}
			}
			g.addEdge(dep.ID, d.ID, HardRequired)
		}
		for _, other := range d.IncompatibleWith {
			if _, present := byID[other]; present {
				return nil, &IncompatibilityError{ModID: d.ID, IncompatibleID: other}
			}
		}
	}

	if chain := g.findCycle(); chain != nil {
		return nil, &CircularDependencyError{Chain: chain}
	}

	// Soft edges second, one at a time in discovery order. An edge that
	// would close a cycle against the already-accepted graph is dropped.
	for _, d := range descriptors {
		for _, other := range d.LoadAfter {
			addSoftEdge(ctx, g, byID, other, d.ID, SoftAfter)
		}
		for _, other := range d.LoadBefore {
			addSoftEdge(ctx, g, byID, d.ID, other, SoftBefore)
		}
	}

	return g.topoSort(), nil
}

// addSoftEdge links `from` before `to` unless the hint references an
// unknown mod or would introduce a cycle. Hints are preferences, not
// requirements, so both cases degrade to a log line.
func addSoftEdge(ctx context.Context, g *graph, byID map[string]*manifest.Descriptor, from, to string, kind EdgeKind) {
	logger := ctxlog.FromContext(ctx)
	if _, ok := byID[from]; !ok {
		logger.Debug("Soft ordering hint references unknown mod, ignoring.", "kind", kind.String(), "from", from, "to", to)
		return
	}
	if _, ok := byID[to]; !ok {
		logger.Debug("Soft ordering hint references unknown mod, ignoring.", "kind", kind.String(), "from", from, "to", to)
		return
	}
	// Adding from->to closes a cycle exactly when `from` is already
	// reachable from `to`.
	if g.reachable(to, from) {
		logger.Warn("Dropping soft ordering hint that would create a cycle.", "kind", kind.String(), "from", from, "to", to)
		return
	}
	g.addEdge(from, to, kind)
}

// findCycle runs a depth-first search with three node colors and returns
// the full cycle chain (first node repeated last) if one exists. Nodes and
// edges are visited in deterministic order so the reported chain is stable.
func (g *graph) findCycle() []string {
	const (
		white = iota // unvisited
		gray         // on the current recursion stack
		black        // fully explored
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var chain []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)

		for _, dep := range sortedKeys(g.nodes[id].deps) {
			switch color[dep] {
			case gray:
				// Found the back edge; slice the stack from the first
				// occurrence of dep to close the chain.
				for i, onStack := range stack {
					if onStack == dep {
						chain = append(append([]string{}, stack[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if visit(id) {
				return chain
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
