package graph

import (
	"context"
	"sort"

	"github.com/cqlabs/cqs/internal/store"
)

// Hotspot is a chunk ranked by how many distinct callers reach it.
type Hotspot struct {
	Name        string
	CallerCount int
	TestCount   int // number of tests in its reverse-BFS ancestor set
}

// Hotspots ranks every name that appears on the callee side of an edge by
// its distinct caller count, highest first; ties break by name for
// reproducible output.
func Hotspots(ctx context.Context, s store.Store, limit int) ([]Hotspot, error) {
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

	hotspots := make([]Hotspot, 0, len(g.Reverse))
	for name, callers := range g.Reverse {
		hotspots = append(hotspots, Hotspot{Name: name, CallerCount: len(callers)})
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].CallerCount != hotspots[j].CallerCount {
			return hotspots[i].CallerCount > hotspots[j].CallerCount
		}
		return hotspots[i].Name < hotspots[j].Name
	})
	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}

	for i := range hotspots {
		ancestors := reverseBFS(g, hotspots[i].Name, 5)
		count := 0
		for name, a := range ancestors {
			if a.depth == 0 {
				continue
			}
			if _, isTest := testNames[name]; isTest {
				count++
			}
		}
		hotspots[i].TestCount = count
	}
	return hotspots, nil
}

// UntestedHotspots filters Hotspots down to those with zero tests anywhere
// in their reverse-BFS ancestor set — code that's heavily depended on but
// never exercised by a test.
func UntestedHotspots(ctx context.Context, s store.Store, limit int) ([]Hotspot, error) {
	all, err := Hotspots(ctx, s, 0)
	if err != nil {
		return nil, err
	}
	var out []Hotspot
	for _, h := range all {
		if h.TestCount == 0 {
			out = append(out, h)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
