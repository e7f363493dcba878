package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Embed_ReturnsUnitNormVector(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "func handleRequest(w http.ResponseWriter)")
	require.NoError(t, err)
	require.Len(t, vec, Dimensions)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestStaticEmbedder_Embed_EmptyTextReturnsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, Dimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_Embed_IsDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	a, err := e.Embed(context.Background(), "func formatMessage(msg string) string")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "func formatMessage(msg string) string")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStaticEmbedder_Embed_DifferentTextDifferentVector(t *testing.T) {
	e := NewStaticEmbedder()
	a, err := e.Embed(context.Background(), "func readFile(path string) ([]byte, error)")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "func writeFile(path string, data []byte) error")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStaticEmbedder_EmbedBatch_MatchesIndividualEmbed(t *testing.T) {
	e := NewStaticEmbedder()
	texts := []string{"func a()", "func b()", ""}

	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedder_EmbedBatch_Empty(t *testing.T) {
	e := NewStaticEmbedder()
	batch, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestStaticEmbedder_Close_RejectsFurtherCalls(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestStaticEmbedder_Dimensions_And_ModelName(t *testing.T) {
	e := NewStaticEmbedder()
	assert.Equal(t, Dimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
}

func TestStaticEmbedder_StopWordsDontDominateShortIdentifiers(t *testing.T) {
	e := NewStaticEmbedder()
	// "func return" is entirely stop words; once those tokens are filtered
	// out, only its character n-grams contribute to the vector.
	withKeywords, err := e.Embed(context.Background(), "func return")
	require.NoError(t, err)
	assert.Len(t, withKeywords, Dimensions)
}
