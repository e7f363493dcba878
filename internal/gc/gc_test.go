package gc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedChunk(id, file, name string, mtime time.Time) store.StoredChunk {
	c := &chunk.Chunk{
		ID: id, FilePath: file, Language: "go", Kind: chunk.KindFunction,
		Name: name, Signature: "func " + name + "()", Source: "func " + name + "() {}",
		StartLine: 1, EndLine: 3,
	}
	return store.StoredChunk{Chunk: c, Embedding: []float32{0.1, 0.2, 0.3}, Mtime: mtime}
}

func TestPlan_ReportsCleanWhenNothingChanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1000, 0)

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("a.go:1:aaaa", "a.go", "A", mtime),
	}, nil, nil))

	report, err := Plan(ctx, s, map[string]time.Time{"a.go": mtime})
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestPlan_DetectsMissingFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1000, 0)

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("a.go:1:aaaa", "a.go", "A", mtime),
	}, nil, nil))

	report, err := Plan(ctx, s, map[string]time.Time{})
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"a.go"}, report.MissingFiles)
}

func TestApply_DeletesMissingFileChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1000, 0)

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{
		seedChunk("a.go:1:aaaa", "a.go", "A", mtime),
	}, nil, nil))

	report, err := Plan(ctx, s, map[string]time.Time{})
	require.NoError(t, err)

	deleted, err := Apply(ctx, s, report)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	n, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
