package graph

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

func seedChunk(id, file, name string, startLine int) store.StoredChunk {
	c := &chunk.Chunk{
		ID: id, FilePath: file, Language: "go", Kind: chunk.KindFunction,
		Name: name, Signature: "func " + name + "()", Source: "func " + name + "() {}",
		StartLine: startLine, EndLine: startLine + 2,
	}
	return store.StoredChunk{Chunk: c, Embedding: []float32{0.1, 0.2, 0.3}, Mtime: time.Unix(1000, 0)}
}

// chain of calls: handler -> service -> repo, plus TestHandler -> handler.
func seedCallChain(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	chunks := []store.StoredChunk{
		seedChunk("h.go:1:aaaa", "h.go", "handler", 1),
		seedChunk("s.go:1:bbbb", "s.go", "service", 1),
		seedChunk("r.go:1:cccc", "r.go", "repo", 1),
		seedChunk("h_test.go:1:dddd", "h_test.go", "TestHandler", 1),
	}
	calls := []chunk.CallEdge{
		{CallerName: "handler", CallerFile: "h.go", CalleeName: "service", CallSiteLine: 2},
		{CallerName: "service", CallerFile: "s.go", CalleeName: "repo", CallSiteLine: 2},
		{CallerName: "TestHandler", CallerFile: "h_test.go", CalleeName: "handler", CallSiteLine: 2},
	}
	require.NoError(t, s.UpsertChunksBatch(ctx, chunks, calls, nil))
}

func TestReverseBFS_FindsAncestorsWithDepth(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	g, err := s.GetCallGraph(context.Background())
	require.NoError(t, err)

	ancestors := reverseBFS(g, "repo", 5)
	assert.Equal(t, 0, ancestors["repo"].depth)
	assert.Equal(t, 1, ancestors["service"].depth)
	assert.Equal(t, 2, ancestors["handler"].depth)
	assert.Equal(t, 3, ancestors["TestHandler"].depth)
}

func TestReverseBFS_RespectsMaxDepth(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	g, err := s.GetCallGraph(context.Background())
	require.NoError(t, err)

	ancestors := reverseBFS(g, "repo", 1)
	_, ok := ancestors["handler"]
	assert.False(t, ok)
	_, ok = ancestors["service"]
	assert.True(t, ok)
}

func TestChain_WalksFromNameToRootNotReversed(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	g, err := s.GetCallGraph(context.Background())
	require.NoError(t, err)

	ancestors := reverseBFS(g, "repo", 5)
	got := chain(ancestors, "TestHandler")
	assert.Equal(t, []string{"TestHandler", "handler", "service", "repo"}, got)
}
