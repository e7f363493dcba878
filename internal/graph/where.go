package graph

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

// PlacementPatterns summarizes the conventions observed in a candidate
// file, so a caller can match new code to its surroundings instead of
// guessing a style.
type PlacementPatterns struct {
	NamingConvention string // "camelCase", "snake_case", or "" if mixed/unknown
	Visibility       string // "exported", "unexported", or "mixed"
	HasInlineTests   bool
}

// PlacementSuggestion is one candidate location suggest_placement proposes
// for a new chunk of code.
type PlacementSuggestion struct {
	File         string
	Score        float32
	InsertionLine int
	NearFunction string
	Reason       string
	Patterns     PlacementPatterns
}

var camelCaseRe = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*[A-Z]`)

// SuggestPlacement embeds description, ranks files by their best chunk's
// similarity to it, and for each of the top limit files proposes inserting
// right after the most similar function, describing that file's naming,
// visibility, and test conventions.
func SuggestPlacement(ctx context.Context, s store.Store, embedder Embedder, description string, limit int) ([]PlacementSuggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	queryVec, err := embedder.Embed(ctx, description)
	if err != nil {
		return nil, err
	}

	embeddings, err := s.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	type best struct {
		chunkID string
		score   float32
	}
	bestByFile := make(map[string]best)
	for id, vec := range embeddings {
		c, err := s.GetChunk(ctx, id)
		if err != nil || c == nil {
			continue
		}
		score := cosineSimilarity(queryVec, vec)
		cur, ok := bestByFile[c.FilePath]
		if !ok || score > cur.score {
			bestByFile[c.FilePath] = best{chunkID: id, score: score}
		}
	}

	type fileScore struct {
		file  string
		score float32
	}
	ranked := make([]fileScore, 0, len(bestByFile))
	for file, b := range bestByFile {
		ranked = append(ranked, fileScore{file: file, score: b.score})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	registry := chunk.DefaultRegistry()
	suggestions := make([]PlacementSuggestion, 0, len(ranked))
	for _, fs := range ranked {
		near := bestByFile[fs.file]
		nearChunk, err := s.GetChunk(ctx, near.chunkID)
		if err != nil || nearChunk == nil {
			continue
		}

		fileChunks, err := s.GetChunksByFile(ctx, fs.file)
		if err != nil {
			return nil, err
		}

		suggestions = append(suggestions, PlacementSuggestion{
			File:          fs.file,
			Score:         fs.score,
			InsertionLine: nearChunk.EndLine + 1,
			NearFunction:  nearChunk.Name,
			Reason:        "most semantically similar function in this file",
			Patterns:      inferPatterns(registry, fileChunks),
		})
	}
	return suggestions, nil
}

func inferPatterns(registry *chunk.LanguageRegistry, chunks []*chunk.Chunk) PlacementPatterns {
	var camel, snake, exported, unexported int
	hasTest := false
	var def *chunk.LanguageDef
	for _, c := range chunks {
		if def == nil {
			if d, ok := registry.GetByName(c.Language); ok {
				def = d
			}
		}
		switch {
		case camelCaseRe.MatchString(c.Name):
			camel++
		case strings.Contains(c.Name, "_"):
			snake++
		}
		if def != nil {
			if def.IsExported != nil && def.IsExported(c.Name, c.Signature) {
				exported++
			} else {
				unexported++
			}
			if def.IsTestName != nil && def.IsTestName(c.Name) {
				hasTest = true
			}
		}
	}

	naming := ""
	switch {
	case camel > 0 && snake == 0:
		naming = "camelCase"
	case snake > 0 && camel == 0:
		naming = "snake_case"
	}

	visibility := "mixed"
	switch {
	case exported > 0 && unexported == 0:
		visibility = "exported"
	case unexported > 0 && exported == 0:
		visibility = "unexported"
	}

	return PlacementPatterns{
		NamingConvention: naming,
		Visibility:       visibility,
		HasInlineTests:   hasTest,
	}
}
