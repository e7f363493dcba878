package graph

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cqlabs/cqs/internal/store"
)

// DefaultGatherDepth is how many call-graph hops gather walks in each
// direction when the caller doesn't specify one.
const DefaultGatherDepth = 2

// chunkLookupCacheSize bounds the per-call LRU cache gather uses to
// avoid re-resolving the same hot chunk across overlapping BFS frontiers.
const chunkLookupCacheSize = 512

// GatherNode is one chunk reached while expanding a seed's neighborhood.
type GatherNode struct {
	Name      string
	File      string
	StartLine int
	EndLine   int
	Signature string
	Depth     int
	Direction string // "callers", "callees", or "seed"
}

// GatherResult is a seed chunk's call-graph neighborhood out to Depth hops
// in both directions. Callers and Callees are expanded independently, so a
// name reached in both directions appears in both lists.
type GatherResult struct {
	Seed      string
	Callers   []GatherNode
	Callees   []GatherNode
	Truncated bool // true if limit cut off further expansion
}

// Gather expands seed's callers and callees out to depth hops, capped at
// limit total nodes per direction so a heavily-connected seed doesn't pull
// in the whole graph.
func Gather(ctx context.Context, s store.Store, seed string, depth, limit int) (*GatherResult, error) {
	if depth <= 0 {
		depth = DefaultGatherDepth
	}
	if limit <= 0 {
		limit = 50
	}

	g, err := s.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}

	callerAncestors := reverseBFS(g, seed, depth)
	calleeAncestors := reverseBFS(invert(g), seed, depth)

	cache, _ := lru.New[string, store.ChunkSummary](chunkLookupCacheSize)

	result := &GatherResult{Seed: seed}
	result.Callers, result.Truncated = namesToNodes(ctx, s, cache, callerAncestors, "callers", limit)
	var truncatedCallees bool
	result.Callees, truncatedCallees = namesToNodes(ctx, s, cache, calleeAncestors, "callees", limit)
	result.Truncated = result.Truncated || truncatedCallees

	return result, nil
}

// invert swaps a call graph's forward/reverse adjacency, letting reverseBFS
// (which always walks Reverse) be reused to walk calls forward instead.
func invert(g *store.CallGraph) *store.CallGraph {
	return &store.CallGraph{Forward: g.Reverse, Reverse: g.Forward}
}

func namesToNodes(ctx context.Context, s store.Store, cache *lru.Cache[string, store.ChunkSummary], ancestors map[string]ancestor, direction string, limit int) ([]GatherNode, bool) {
	type ranked struct {
		name  string
		depth int
	}
	var names []ranked
	for name, a := range ancestors {
		if a.depth == 0 {
			continue
		}
		names = append(names, ranked{name: name, depth: a.depth})
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].depth != names[j].depth {
			return names[i].depth < names[j].depth
		}
		return names[i].name < names[j].name
	})

	truncated := len(names) > limit
	if truncated {
		names = names[:limit]
	}

	nodes := make([]GatherNode, 0, len(names))
	for _, r := range names {
		c, ok := cache.Get(r.name)
		if !ok {
			summaries, err := s.SearchByName(ctx, r.name, 1)
			if err != nil || len(summaries) == 0 {
				nodes = append(nodes, GatherNode{Name: r.name, Depth: r.depth, Direction: direction})
				continue
			}
			c = summaries[0]
			cache.Add(r.name, c)
		}
		nodes = append(nodes, GatherNode{
			Name: c.Name, File: c.FilePath, StartLine: c.StartLine, EndLine: c.EndLine,
			Signature: c.Signature, Depth: r.depth, Direction: direction,
		})
	}
	return nodes, truncated
}
