package graph

import (
	"context"

	"github.com/cqlabs/cqs/internal/store"
)

// Hints is the lightweight per-chunk record compute_hints produces: how
// many places call this chunk, and how many tests (transitively) exercise
// it, computed in one pass over the reverse graph so repeated callers
// asking about many names don't each pay for their own traversal.
type Hints struct {
	Name        string
	CallerCount int
	TestCount   int
}

// ComputeHints builds Hints for every name in names. callerCounts, when
// non-nil, is consulted before querying the graph — callers that already
// know a name's caller count (e.g. from a prior Hotspots call) can avoid
// recomputing it.
func ComputeHints(ctx context.Context, s store.Store, names []string, callerCounts map[string]int) (map[string]Hints, error) {
	g, err := s.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	testChunks, err := s.FindTestChunks(ctx)
	if err != nil {
		return nil, err
	}
	testNames := make(map[string]struct{}, len(testChunks))
	for _, tc := range testChunks {
		testNames[tc.Name] = struct{}{}
	}

	out := make(map[string]Hints, len(names))
	for _, name := range names {
		callerCount, ok := callerCounts[name]
		if !ok {
			callerCount = len(g.Reverse[name])
		}

		ancestors := reverseBFS(g, name, 5)
		testCount := 0
		for ancestorName, a := range ancestors {
			if a.depth == 0 {
				continue
			}
			if _, isTest := testNames[ancestorName]; isTest {
				testCount++
			}
		}

		out[name] = Hints{Name: name, CallerCount: callerCount, TestCount: testCount}
	}
	return out, nil
}
