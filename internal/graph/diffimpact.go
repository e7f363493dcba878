package graph

import (
	"context"
	"sort"

	"github.com/cqlabs/cqs/internal/diffparse"
	"github.com/cqlabs/cqs/internal/store"
)

// DefaultMaxImpactDepth bounds the backward BFS analyze_diff_impact walks
// from each changed chunk, matching the default test-search depth.
const DefaultMaxImpactDepth = 5

// ChangedFunction is one chunk a diff hunk's line range intersects.
type ChangedFunction struct {
	Name      string
	File      string
	StartLine int
	EndLine   int
}

// ImpactCaller is one caller reached by backward BFS from a changed chunk.
type ImpactCaller struct {
	Name      string
	File      string
	Line      int
	Via       string // the changed function this caller path leads back to
	CallDepth int
}

// DiffImpactResult is the full analyze_diff_impact response: every chunk
// the diff touched, every caller reachable from them, and the subset of
// those callers that look like tests.
type DiffImpactResult struct {
	ChangedFunctions []ChangedFunction
	AllCallers       []ImpactCaller
	AllTests         []ImpactCaller
}

// MapHunksToFunctions finds, for each parsed diff hunk, every stored chunk
// in the same file whose line range intersects the hunk's changed range.
func MapHunksToFunctions(ctx context.Context, s store.Store, hunks []diffparse.Hunk) ([]ChangedFunction, error) {
	byFile := make(map[string][]diffparse.Hunk)
	for _, h := range hunks {
		byFile[h.File] = append(byFile[h.File], h)
	}

	var changed []ChangedFunction
	seen := make(map[string]struct{})
	for file, fileHunks := range byFile {
		chunks, err := s.GetChunksByFile(ctx, file)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			for _, h := range fileHunks {
				if rangesIntersect(c.StartLine, c.EndLine, h.StartLine, h.EndLine) {
					key := c.FilePath + ":" + c.Name
					if _, dup := seen[key]; dup {
						break
					}
					seen[key] = struct{}{}
					changed = append(changed, ChangedFunction{
						Name: c.Name, File: c.FilePath, StartLine: c.StartLine, EndLine: c.EndLine,
					})
					break
				}
			}
		}
	}

	sort.Slice(changed, func(i, j int) bool {
		if changed[i].File != changed[j].File {
			return changed[i].File < changed[j].File
		}
		return changed[i].StartLine < changed[j].StartLine
	})
	return changed, nil
}

func rangesIntersect(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && bStart <= aEnd
}

// AnalyzeDiffImpact runs backward BFS from every changed chunk up to
// maxDepth, collecting callers annotated with the changed function they
// lead back to (via) and their BFS depth, then separates out the callers
// that match the test detection rule.
func AnalyzeDiffImpact(ctx context.Context, s store.Store, changed []ChangedFunction, maxDepth int) (*DiffImpactResult, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxImpactDepth
	}

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

	result := &DiffImpactResult{ChangedFunctions: changed}
	seenCaller := make(map[string]struct{})
	edgeCache := make(map[string][]store.CallEdgeRecord) // callee name -> its caller edges

	edgesInto := func(callee string) ([]store.CallEdgeRecord, error) {
		if edges, ok := edgeCache[callee]; ok {
			return edges, nil
		}
		edges, err := s.GetCallersFull(ctx, callee)
		if err != nil {
			return nil, err
		}
		edgeCache[callee] = edges
		return edges, nil
	}

	for _, cf := range changed {
		ancestors := reverseBFS(g, cf.Name, maxDepth)
		names := make([]string, 0, len(ancestors))
		for name := range ancestors {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			a := ancestors[name]
			if a.depth == 0 {
				continue // the changed function itself
			}
			dedupeKey := cf.Name + "->" + name
			if _, dup := seenCaller[dedupeKey]; dup {
				continue
			}
			seenCaller[dedupeKey] = struct{}{}

			caller := ImpactCaller{Name: name, Via: cf.Name, CallDepth: a.depth}
			// a.predecessor is the callee name's-worth closer to cf.Name; the
			// edge recording name calling it carries name's file/line.
			if edges, err := edgesInto(a.predecessor); err == nil {
				for _, e := range edges {
					if e.CallerName == name {
						caller.File = e.CallerFile
						caller.Line = e.CallLine
						break
					}
				}
			}
			result.AllCallers = append(result.AllCallers, caller)

			if _, isTest := testNames[name]; isTest {
				result.AllTests = append(result.AllTests, caller)
			}
		}
	}

	sort.Slice(result.AllCallers, func(i, j int) bool {
		if result.AllCallers[i].CallDepth != result.AllCallers[j].CallDepth {
			return result.AllCallers[i].CallDepth < result.AllCallers[j].CallDepth
		}
		return result.AllCallers[i].Name < result.AllCallers[j].Name
	})
	sort.Slice(result.AllTests, func(i, j int) bool {
		if result.AllTests[i].CallDepth != result.AllTests[j].CallDepth {
			return result.AllTests[i].CallDepth < result.AllTests[j].CallDepth
		}
		return result.AllTests[i].Name < result.AllTests[j].Name
	})

	return result, nil
}
