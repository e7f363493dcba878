package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

func TestHotspots_RanksByCallerCount(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	hotspots, err := Hotspots(context.Background(), s, 0)
	require.NoError(t, err)
	require.NotEmpty(t, hotspots)
	assert.Equal(t, "handler", hotspots[0].Name)
	assert.Equal(t, 1, hotspots[0].CallerCount)
}

func TestHotspots_TestCountReflectsReachableTests(t *testing.T) {
	s := newTestStore(t)
	seedCallChain(t, s)

	hotspots, err := Hotspots(context.Background(), s, 0)
	require.NoError(t, err)

	byName := map[string]Hotspot{}
	for _, h := range hotspots {
		byName[h.Name] = h
	}
	assert.Equal(t, 1, byName["repo"].TestCount)
	assert.Equal(t, 1, byName["service"].TestCount)
}

func TestUntestedHotspots_FiltersZeroTestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCallChain(t, s)

	// add "other", called only by an untested caller, so it appears as a
	// hotspot with zero reachable tests.
	orphan := seedChunk("orphan.go:1:eeee", "orphan.go", "other", 1)
	edges := []chunk.CallEdge{{CallerName: "orphanCaller", CallerFile: "orphan.go", CalleeName: "other", CallSiteLine: 2}}
	require.NoError(t, s.UpsertChunksBatch(ctx, []store.StoredChunk{orphan}, edges, nil))

	untested, err := UntestedHotspots(ctx, s, 0)
	require.NoError(t, err)

	var names []string
	for _, h := range untested {
		assert.Zero(t, h.TestCount)
		names = append(names, h.Name)
	}
	assert.Contains(t, names, "other")
	assert.NotContains(t, names, "repo")
}
