package search

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/notes"
	"github.com/cqlabs/cqs/internal/store"
)

// minCandidates is the floor on how many ANN neighbors (or linear-scan
// candidates) are pulled before lexical boosting and filtering narrow them
// down, per spec section 4.4 step 3.
const minCandidates = 50

// Search runs the spec section 4.4 hybrid-search algorithm against s, using
// embedder to vectorize the query. noteEntries supplies the sentiment
// adjustment in step 5 (may be nil if no notes file is loaded).
func Search(ctx context.Context, s store.Store, embedder Embedder, query string, opts Options, noteEntries []notes.Entry) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultOptions().Limit
	}

	// Step 1: name-only path.
	if opts.NameOnly {
		return searchByNameOnly(ctx, s, query, opts.Limit)
	}

	results, err := searchOneStore(ctx, s, embedder, query, opts, noteEntries, "")
	if err != nil {
		return nil, err
	}

	// Step 7: multi-source blending.
	for _, ref := range opts.Sources {
		refResults, err := searchOneStore(ctx, ref.Store, embedder, query, opts, noteEntries, ref.Name)
		if err != nil {
			return nil, err
		}
		for i := range refResults {
			refResults[i].Score *= ref.Weight
		}
		results = append(results, refResults...)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].VecScore != results[j].VecScore {
			return results[i].VecScore > results[j].VecScore
		}
		return len(results[i].Chunk.FilePath) < len(results[j].Chunk.FilePath)
	})

	// Step 8: threshold & cut.
	kept := results[:0]
	for _, r := range results {
		if r.Score >= opts.Threshold {
			kept = append(kept, r)
		}
	}
	if len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}
	return kept, nil
}

func searchByNameOnly(ctx context.Context, s store.Store, query string, limit int) ([]Result, error) {
	summaries, err := s.SearchByName(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, Result{
			Chunk: &chunk.Chunk{
				ID: sum.ID, FilePath: sum.FilePath, Language: sum.Language, Kind: sum.Kind,
				Name: sum.Name, Signature: sum.Signature, StartLine: sum.StartLine, EndLine: sum.EndLine,
			},
			Score: nameOnlyScore(query, sum.Name),
		})
	}
	return out, nil
}

func nameOnlyScore(query, name string) float64 {
	switch {
	case query == name:
		return 1.0
	case strings.EqualFold(query, name):
		return 0.9
	case strings.Contains(strings.ToLower(name), strings.ToLower(query)):
		return 0.7
	default:
		return 0.5
	}
}

func searchOneStore(ctx context.Context, s store.Store, embedder Embedder, query string, opts Options, noteEntries []notes.Entry, sourceName string) ([]Result, error) {
	// Step 2: embed the query, appending a zero sentiment dimension.
	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	queryVec = notes.ApplySentiment(queryVec, 0)

	// Step 3: vector candidates via linear scan (no ANN handle is plumbed
	// through store.Store; callers needing the HNSW fast path query it
	// directly and pass pre-filtered IDs in a future extension).
	embeddings, err := s.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	type scoredCandidate struct {
		id      string
		cos     float64
		sentVec []float32
	}
	candidates := make([]scoredCandidate, 0, len(embeddings))
	for id, vec := range embeddings {
		candidates = append(candidates, scoredCandidate{id: id, cos: cosineSim(queryVec, vec), sentVec: vec})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].cos > candidates[j].cos })

	want := opts.Limit * 4
	if want < minCandidates {
		want = minCandidates
	}
	if want > len(candidates) {
		want = len(candidates)
	}
	candidates = candidates[:want]

	queryTokens := tokenizeIdentifier(query)
	glob := opts.PathGlob

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		ck, err := s.GetChunk(ctx, c.id)
		if err != nil || ck == nil {
			continue
		}

		// Step 4: lexical boost.
		nameScore := lexicalNameScore(queryTokens, query, ck.Name)
		combined := c.cos
		if !opts.SemanticOnly {
			combined = (1-opts.NameBoost)*c.cos + opts.NameBoost*nameScore
		}

		// Step 5: sentiment adjustment.
		if opts.NoteWeight != 0 {
			if sentiment, ok := notes.SentimentForChunk(noteEntries, ck.FilePath, ck.Name); ok {
				combined += opts.NoteWeight * sentiment
			} else if len(c.sentVec) > notes.SentimentDim {
				combined += opts.NoteWeight * float64(c.sentVec[notes.SentimentDim])
			}
		}

		// Step 6: filters.
		if opts.Language != "" && !strings.EqualFold(opts.Language, ck.Language) {
			continue
		}
		if opts.Kind != "" && string(ck.Kind) != opts.Kind {
			continue
		}
		if glob != "" {
			if ok, _ := filepath.Match(glob, ck.FilePath); !ok {
				continue
			}
		}
		if opts.Pattern != "" && !HasPattern(ck.Name, ck.Source, opts.Pattern) {
			continue
		}

		results = append(results, Result{
			Chunk:     ck,
			Score:     combined,
			VecScore:  c.cos,
			NameScore: nameScore,
			Source:    sourceName,
		})
	}
	return results, nil
}

func cosineSim(a, b []float32) float64 {
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
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func tokenizeIdentifier(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range store.TokenizeCode(s) {
		out[strings.ToLower(tok)] = struct{}{}
	}
	return out
}

// lexicalNameScore is 1.0 if query occurs as a contiguous case-insensitive
// substring of name, else the Jaccard overlap between their tokenized words.
func lexicalNameScore(queryTokens map[string]struct{}, query, name string) float64 {
	if strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
		return 1.0
	}
	nameTokens := tokenizeIdentifier(name)
	if len(queryTokens) == 0 || len(nameTokens) == 0 {
		return 0
	}
	intersection := 0
	for t := range queryTokens {
		if _, ok := nameTokens[t]; ok {
			intersection++
		}
	}
	union := len(queryTokens) + len(nameTokens) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
