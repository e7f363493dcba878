package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder is a test double that counts calls.
type mockEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	dimensions int
	modelName  string
	vec        []float32
}

func newMockEmbedder(dims int) *mockEmbedder {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i) * 0.001
	}
	return &mockEmbedder{dimensions: dims, modelName: "mock-model", vec: vec}
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.embedCalls.Add(1)
	return m.vec, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.vec
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int  { return m.dimensions }
func (m *mockEmbedder) ModelName() string { return m.modelName }
func (m *mockEmbedder) Close() error      { return nil }

func TestCachedEmbedder_Embed_CachesRepeatedText(t *testing.T) {
	inner := newMockEmbedder(Dimensions)
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "foo")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "foo")
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.embedCalls.Load(), "second call should hit the cache")
}

func TestCachedEmbedder_Embed_DistinctTextsBothMiss(t *testing.T) {
	inner := newMockEmbedder(Dimensions)
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "foo")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "bar")
	require.NoError(t, err)

	assert.EqualValues(t, 2, inner.embedCalls.Load())
}

func TestCachedEmbedder_EmbedBatch_OnlyComputesUncached(t *testing.T) {
	inner := newMockEmbedder(Dimensions)
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "foo")
	require.NoError(t, err)

	results, err := cached.EmbedBatch(context.Background(), []string{"foo", "bar", "baz"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// "foo" was already cached by Embed; EmbedBatch should only compute "bar"/"baz".
	assert.EqualValues(t, 1, inner.batchCalls.Load())
}

func TestCachedEmbedder_EmbedBatch_Empty(t *testing.T) {
	cached := NewCachedEmbedder(newMockEmbedder(Dimensions), 10)
	results, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCachedEmbedder_PassesThroughModelNameAndDimensions(t *testing.T) {
	inner := newMockEmbedder(Dimensions)
	cached := NewCachedEmbedder(inner, 10)

	assert.Equal(t, inner.modelName, cached.ModelName())
	assert.Equal(t, inner.dimensions, cached.Dimensions())
	assert.Same(t, inner, cached.Inner())
}

func TestCachedEmbedder_DifferentModelsDontShareCacheEntries(t *testing.T) {
	a := newMockEmbedder(Dimensions)
	a.modelName = "model-a"
	b := newMockEmbedder(Dimensions)
	b.modelName = "model-b"

	cachedA := NewCachedEmbedder(a, 10)
	cachedB := NewCachedEmbedder(b, 10)

	_, err := cachedA.Embed(context.Background(), "same text")
	require.NoError(t, err)
	_, err = cachedB.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.EqualValues(t, 1, a.embedCalls.Load())
	assert.EqualValues(t, 1, b.embedCalls.Load())
}
