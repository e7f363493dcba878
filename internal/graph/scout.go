package graph

import (
	"context"
	"math"
	"sort"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

// Embedder is the narrow embedding capability scout, gather, and where need:
// turn free text into the same 768-float space stored chunk embeddings
// live in. Satisfied by internal/embed's client; kept as an interface here
// so this package never imports the embedder directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkRole is scout's inferred reason a chunk showed up for a task.
type ChunkRole string

const (
	RoleModifyTarget ChunkRole = "modify_target"
	RoleTestToUpdate ChunkRole = "test_to_update"
	RoleDependency   ChunkRole = "dependency"
)

// ScoutChunk is one chunk within a scout file group.
type ScoutChunk struct {
	Name        string
	Signature   string
	Role        ChunkRole
	CallerCount int
	TestCount   int
}

// ScoutFileGroup is every hit chunk in one file, ranked by the group's best
// individual relevance score.
type ScoutFileGroup struct {
	File           string
	RelevanceScore float32
	Chunks         []ScoutChunk
}

// ScoutSummary tallies scout's file groups for a one-line digest.
type ScoutSummary struct {
	TotalFiles     int
	TotalFunctions int
	UntestedCount  int
}

// ScoutResult is scout's full pre-investigation dashboard for a task.
type ScoutResult struct {
	FileGroups []ScoutFileGroup
	Summary    ScoutSummary
}

// Scout embeds task, ranks stored chunks by cosine similarity to it, groups
// the top hits by file, and annotates each chunk with its caller/test
// counts and an inferred role: a chunk called by another hit in the same
// result set is that hit's dependency; a test-named chunk is a test to
// update; everything else is a direct modify target.
func Scout(ctx context.Context, s store.Store, embedder Embedder, task string, limit int) (*ScoutResult, error) {
	if limit <= 0 {
		limit = 20
	}

	queryVec, err := embedder.Embed(ctx, task)
	if err != nil {
		return nil, err
	}

	embeddings, err := s.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		id    string
		score float32
	}
	ranked := make([]scored, 0, len(embeddings))
	for id, vec := range embeddings {
		ranked = append(ranked, scored{id: id, score: cosineSimilarity(queryVec, vec)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	maxHits := limit * 4
	if maxHits > len(ranked) {
		maxHits = len(ranked)
	}
	ranked = ranked[:maxHits]

	type hit struct {
		c     *chunk.Chunk
		score float32
	}
	hits := make([]hit, 0, len(ranked))
	hitNames := make(map[string]struct{}, len(ranked))
	for _, r := range ranked {
		c, err := s.GetChunk(ctx, r.id)
		if err != nil || c == nil {
			continue
		}
		hits = append(hits, hit{c: c, score: r.score})
		hitNames[c.Name] = struct{}{}
	}

	graphInfo, err := s.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.c.Name
	}
	hintsByName, err := ComputeHints(ctx, s, names, nil)
	if err != nil {
		return nil, err
	}

	registry := chunk.DefaultRegistry()
	groupsByFile := make(map[string]*ScoutFileGroup)
	var order []string
	for _, h := range hits {
		group, ok := groupsByFile[h.c.FilePath]
		if !ok {
			group = &ScoutFileGroup{File: h.c.FilePath, RelevanceScore: h.score}
			groupsByFile[h.c.FilePath] = group
			order = append(order, h.c.FilePath)
		}
		if h.score > group.RelevanceScore {
			group.RelevanceScore = h.score
		}

		role := RoleModifyTarget
		def, ok := registry.GetByName(h.c.Language)
		if ok && def.IsTestName != nil && def.IsTestName(h.c.Name) {
			role = RoleTestToUpdate
		} else if isCalledByAnotherHit(graphInfo, h.c.Name, hitNames) {
			role = RoleDependency
		}

		hint := hintsByName[h.c.Name]
		group.Chunks = append(group.Chunks, ScoutChunk{
			Name:        h.c.Name,
			Signature:   h.c.Signature,
			Role:        role,
			CallerCount: hint.CallerCount,
			TestCount:   hint.TestCount,
		})
	}

	groups := make([]ScoutFileGroup, 0, len(order))
	functionCount, untested := 0, 0
	for _, file := range order {
		g := groupsByFile[file]
		for _, c := range g.Chunks {
			functionCount++
			if c.TestCount == 0 && c.Role != RoleTestToUpdate {
				untested++
			}
		}
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].RelevanceScore > groups[j].RelevanceScore })
	if len(groups) > limit {
		groups = groups[:limit]
	}

	return &ScoutResult{
		FileGroups: groups,
		Summary: ScoutSummary{
			TotalFiles:     len(groups),
			TotalFunctions: functionCount,
			UntestedCount:  untested,
		},
	}, nil
}

// isCalledByAnotherHit reports whether some other hit chunk calls name,
// which marks name a dependency of that hit rather than a direct target.
func isCalledByAnotherHit(g *store.CallGraph, name string, hitNames map[string]struct{}) bool {
	for _, caller := range g.Reverse[name] {
		if caller == name {
			continue
		}
		if _, ok := hitNames[caller]; ok {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
