// Package diffstore computes a semantic diff between two chunk stores,
// grounded on a name+file identity and compared by the content hash of each
// chunk's source, so any change to the source text, formatting included,
// registers as a modification.
package diffstore

import (
	"context"
	"math"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

// Entry is one chunk surfaced in a diff result.
type Entry struct {
	Name string
	File string
	Kind chunk.Kind
}

// ModifiedEntry is a chunk present in both stores whose content hash
// changed between them.
type ModifiedEntry struct {
	Entry
	Similarity float32 // cosine similarity between the two stored embeddings
}

// Result is a semantic diff between two named stores.
type Result struct {
	Source, Target string
	Added          []Entry
	Removed        []Entry
	Modified       []ModifiedEntry
	UnchangedCount int
}

type chunkKey struct {
	file, name string
}

// Diff compares source against target, both identified by name for display.
func Diff(ctx context.Context, source store.Store, target store.Store, sourceName, targetName string) (*Result, error) {
	sourceChunks, err := allChunks(ctx, source)
	if err != nil {
		return nil, err
	}
	targetChunks, err := allChunks(ctx, target)
	if err != nil {
		return nil, err
	}

	result := &Result{Source: sourceName, Target: targetName}

	for key, sc := range sourceChunks {
		tc, ok := targetChunks[key]
		if !ok {
			result.Added = append(result.Added, Entry{Name: sc.chunk.Name, File: sc.chunk.FilePath, Kind: sc.chunk.Kind})
			continue
		}
		if tc.chunk.ContentHash == sc.chunk.ContentHash {
			result.UnchangedCount++
			continue
		}
		result.Modified = append(result.Modified, ModifiedEntry{
			Entry:      Entry{Name: sc.chunk.Name, File: sc.chunk.FilePath, Kind: sc.chunk.Kind},
			Similarity: cosineSim(sc.embedding, tc.embedding),
		})
	}

	for key, tc := range targetChunks {
		if _, ok := sourceChunks[key]; !ok {
			result.Removed = append(result.Removed, Entry{Name: tc.chunk.Name, File: tc.chunk.FilePath, Kind: tc.chunk.Kind})
		}
	}

	return result, nil
}

type chunkWithEmbedding struct {
	chunk     *chunk.Chunk
	embedding []float32
}

func allChunks(ctx context.Context, s store.Store) (map[chunkKey]chunkWithEmbedding, error) {
	embeddings, err := s.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[chunkKey]chunkWithEmbedding, len(embeddings))
	for id, emb := range embeddings {
		c, err := s.GetChunk(ctx, id)
		if err != nil || c == nil {
			continue
		}
		out[chunkKey{file: c.FilePath, name: c.Name}] = chunkWithEmbedding{chunk: c, embedding: emb}
	}
	return out, nil
}

func cosineSim(a, b []float32) float32 {
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
