package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestMap_FindsTestsByCallChainDepth(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	result, err := TestMap(context.Background(), s, "repo", 5)
	require.NoError(t, err)
	require.Len(t, result.Tests, 1)

	hit := result.Tests[0]
	assert.Equal(t, "TestHandler", hit.Name)
	assert.Equal(t, 3, hit.CallDepth)
	assert.Equal(t, []string{"TestHandler", "handler", "service", "repo"}, hit.CallChain)
}

func TestTestMap_RespectsMaxDepth(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	result, err := TestMap(context.Background(), s, "repo", 2)
	require.NoError(t, err)
	assert.Empty(t, result.Tests, "TestHandler is 3 hops from repo, outside maxDepth=2")
}
