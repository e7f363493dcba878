package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/notes"
	"github.com/cqlabs/cqs/internal/store"
)

type stubEmbedder struct {
	vec []float32
}

func (e stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedChunk(id, file, name, language string, embedding []float32) store.StoredChunk {
	c := &chunk.Chunk{
		ID: id, FilePath: file, Language: language, Kind: chunk.KindFunction,
		Name: name, Signature: "func " + name + "()", Source: "func " + name + "() {}",
		StartLine: 1, EndLine: 3,
	}
	return store.StoredChunk{Chunk: c, Embedding: embedding, Mtime: time.Unix(1000, 0)}
}

func TestSearch_NameOnlyPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("a.go:1:aaaa", "a.go", "HandleRequest", "go", []float32{1, 0, 0}),
	}, nil, nil))

	opts := DefaultOptions()
	opts.NameOnly = true
	results, err := Search(ctx, s, stubEmbedder{}, "HandleRequest", opts, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestSearch_RanksByVectorSimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("close.go:1:aaaa", "close.go", "Close", "go", []float32{1, 0, 0}),
		seedChunk("far.go:1:bbbb", "far.go", "Far", "go", []float32{0, 1, 0}),
	}, nil, nil))

	opts := DefaultOptions()
	opts.NameBoost = 0
	results, err := Search(ctx, s, stubEmbedder{vec: []float32{1, 0, 0}}, "query", opts, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Close", results[0].Chunk.Name)
}

func TestSearch_LanguageFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("a.go:1:aaaa", "a.go", "GoThing", "go", []float32{1, 0, 0}),
		seedChunk("a.py:1:bbbb", "a.py", "py_thing", "python", []float32{1, 0, 0}),
	}, nil, nil))

	opts := DefaultOptions()
	opts.Language = "python"
	results, err := Search(ctx, s, stubEmbedder{vec: []float32{1, 0, 0}}, "thing", opts, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "python", r.Chunk.Language)
	}
}

func TestSearch_ThresholdExcludesLowScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("far.go:1:aaaa", "far.go", "Unrelated", "go", []float32{-1, 0, 0}),
	}, nil, nil))

	opts := DefaultOptions()
	opts.Threshold = 0.99
	opts.NameBoost = 0
	results, err := Search(ctx, s, stubEmbedder{vec: []float32{1, 0, 0}}, "query", opts, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_SentimentAdjustmentFromNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("a.go:1:aaaa", "a.go", "Flaky", "go", []float32{1, 0, 0}),
	}, nil, nil))

	entries := []notes.Entry{{Text: "known flaky", Sentiment: -0.5, Mentions: []string{"Flaky"}}}

	opts := DefaultOptions()
	opts.NameBoost = 0
	opts.NoteWeight = 1.0
	results, err := Search(ctx, s, stubEmbedder{vec: []float32{1, 0, 0}}, "query", opts, entries)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Less(t, results[0].Score, results[0].VecScore)
}

func TestSearch_MultiSourceBlendingScalesByWeight(t *testing.T) {
	primary := newTestStore(t)
	ref := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, primary.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("p.go:1:aaaa", "p.go", "Primary", "go", []float32{1, 0, 0}),
	}, nil, nil))
	require.NoError(t, ref.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("r.go:1:bbbb", "r.go", "Reference", "go", []float32{1, 0, 0}),
	}, nil, nil))

	opts := DefaultOptions()
	opts.NameBoost = 0
	opts.Sources = []ReferenceStore{{Name: "ref", Store: ref, Weight: 0.1}}
	results, err := Search(ctx, primary, stubEmbedder{vec: []float32{1, 0, 0}}, "query", opts, nil)
	require.NoError(t, err)

	var refResult *Result
	for i := range results {
		if results[i].Source == "ref" {
			refResult = &results[i]
		}
	}
	require.NotNil(t, refResult)
	assert.Less(t, refResult.Score, 0.2)
}
