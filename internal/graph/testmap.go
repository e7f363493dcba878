package graph

import (
	"context"
	"sort"

	"github.com/cqlabs/cqs/internal/store"
)

// TestHit is one test that transitively exercises a target function.
type TestHit struct {
	Name      string
	File      string
	Line      int
	CallDepth int
	CallChain []string // [test, ..., target]
}

// TestMapResult is the full test_map response for one target.
type TestMapResult struct {
	Function string
	Tests    []TestHit
}

// TestMap reverse-BFSes from target up to maxDepth, reporting every
// ancestor matching the test detection rule along with its call chain back
// to target. Results are ordered by depth, then name (spec section 5's
// reproducibility guarantee).
func TestMap(ctx context.Context, s store.Store, target string, maxDepth int) (*TestMapResult, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}

	g, err := s.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	testChunks, err := s.FindTestChunks(ctx)
	if err != nil {
		return nil, err
	}

	ancestors := reverseBFS(g, target, maxDepth)

	byName := make(map[string]store.ChunkSummary, len(testChunks))
	for _, tc := range testChunks {
		byName[tc.Name] = tc
	}

	var hits []TestHit
	for _, tc := range testChunks {
		a, ok := ancestors[tc.Name]
		if !ok || a.depth == 0 {
			continue // not an ancestor, or is the target itself
		}
		hits = append(hits, TestHit{
			Name:      tc.Name,
			File:      tc.FilePath,
			Line:      tc.StartLine,
			CallDepth: a.depth,
			CallChain: chain(ancestors, tc.Name),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].CallDepth != hits[j].CallDepth {
			return hits[i].CallDepth < hits[j].CallDepth
		}
		return hits[i].Name < hits[j].Name
	})

	return &TestMapResult{Function: target, Tests: hits}, nil
}
