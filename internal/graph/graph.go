// Package graph implements spec section 4.5's call-graph analyses: direct
// callers/callees, diff impact, test mapping, dead code, hotspots, and the
// higher-level scout/gather/where compositions. Every operation here
// consumes the two name-keyed adjacency maps store.Store.GetCallGraph
// assembles; because callee resolution is by unqualified name only,
// ambiguous names are never disambiguated, just returned as-is.
package graph

import (
	"context"
	"sort"

	"github.com/cqlabs/cqs/internal/store"
)

// Callers returns the full caller edges for name, in (file, line) order —
// a thin pass-through to the store, kept here so every graph-shaped query
// has one home package.
func Callers(ctx context.Context, s store.Store, name string) ([]store.CallEdgeRecord, error) {
	return s.GetCallersFull(ctx, name)
}

// Callees returns the full callee edges for name, optionally narrowed to
// one caller file when the caller's identity is ambiguous across files.
func Callees(ctx context.Context, s store.Store, name, fileHint string) ([]store.CallEdgeRecord, error) {
	return s.GetCalleesFull(ctx, name, fileHint)
}

// reverseBFS walks graph.Reverse from start up to maxDepth, recording the
// depth and predecessor of every name it reaches. start itself is recorded
// at depth 0 with no predecessor. Neighbors are visited in name order so
// traversal is deterministic (spec section 5).
func reverseBFS(g *store.CallGraph, start string, maxDepth int) map[string]ancestor {
	visited := map[string]ancestor{start: {depth: 0}}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		depth := visited[current].depth
		if depth >= maxDepth {
			continue
		}

		callers := append([]string(nil), g.Reverse[current]...)
		sort.Strings(callers)
		for _, caller := range callers {
			if _, seen := visited[caller]; seen {
				continue
			}
			visited[caller] = ancestor{depth: depth + 1, predecessor: current}
			queue = append(queue, caller)
		}
	}
	return visited
}

type ancestor struct {
	depth       int
	predecessor string
}

// chain reconstructs the call path from name back to the BFS root, in
// name-to-root order (e.g. [test, ..., target]) — the shape test_map
// reports.
func chain(ancestors map[string]ancestor, name string) []string {
	var out []string
	current := name
	for {
		out = append(out, current)
		a, ok := ancestors[current]
		if !ok || a.predecessor == "" {
			break
		}
		current = a.predecessor
	}
	return out
}
