package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqlabs/cqs/internal/store"
)

func TestDeadCode_BucketsByExportedness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []store.StoredChunk{
		seedChunk("a.go:1:aaaa", "a.go", "unused", 1),
		seedChunk("a.go:10:bbbb", "a.go", "Unused", 10),
	}
	require.NoError(t, s.UpsertChunksBatch(ctx, chunks, nil, nil))

	result, err := DeadCode(ctx, s)
	require.NoError(t, err)

	var confidentNames, possiblyPubNames []string
	for _, c := range result.Confident {
		confidentNames = append(confidentNames, c.Name)
	}
	for _, c := range result.PossiblyPub {
		possiblyPubNames = append(possiblyPubNames, c.Name)
	}
	assert.Contains(t, confidentNames, "unused")
	assert.Contains(t, possiblyPubNames, "Unused")
}

func TestDeadCode_ExcludesCalledChunks(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	result, err := DeadCode(context.Background(), s)
	require.NoError(t, err)

	all := append(append([]store.ChunkSummary{}, result.Confident...), result.PossiblyPub...)
	for _, c := range all {
		assert.NotEqual(t, "handler", c.Name)
		assert.NotEqual(t, "service", c.Name)
		assert.NotEqual(t, "repo", c.Name)
	}
}
