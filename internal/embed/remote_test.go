package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorsOfDim(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		v[i%dims] = 1
		out[i] = v
	}
	return out
}

func TestRemoteEmbedder_Embed_SendsQueryPrefixAndParsesResponse(t *testing.T) {
	var gotBody embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vectorsOfDim(1, Dimensions)})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{Host: srv.URL, Model: "test-model"})
	defer e.Close()

	vec, err := e.Embed(context.Background(), "find the handler")
	require.NoError(t, err)
	assert.Len(t, vec, Dimensions)

	text, ok := gotBody.Input.(string)
	require.True(t, ok, "single Embed should send a bare string input")
	assert.Contains(t, text, queryPrefix)
	assert.Contains(t, text, "find the handler")
}

func TestRemoteEmbedder_EmbedBatch_SendsDocumentPrefixForEachText(t *testing.T) {
	var gotBody embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vectorsOfDim(2, Dimensions)})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{Host: srv.URL})
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"func a()", "func b()"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	texts, ok := gotBody.Input.([]any)
	require.True(t, ok, "batch EmbedBatch should send a list input")
	require.Len(t, texts, 2)
	for _, text := range texts {
		assert.Contains(t, text.(string), documentPrefix)
	}
}

func TestRemoteEmbedder_EmbedBatch_Empty(t *testing.T) {
	e := NewRemoteEmbedder(DefaultRemoteConfig())
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestRemoteEmbedder_ServerError_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{Host: srv.URL})
	e.retry.MaxRetries = 0 // keep the test fast; retry backoff is covered in internal/errors
	defer e.Close()

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestRemoteEmbedder_MismatchedEmbeddingCount_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vectorsOfDim(1, Dimensions)})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{Host: srv.URL})
	e.retry.MaxRetries = 0
	defer e.Close()

	_, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	assert.Error(t, err)
}

func TestRemoteEmbedder_Close_RejectsFurtherCalls(t *testing.T) {
	e := NewRemoteEmbedder(DefaultRemoteConfig())
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestRemoteEmbedder_Dimensions_And_ModelName(t *testing.T) {
	e := NewRemoteEmbedder(RemoteConfig{Model: "custom-model"})
	defer e.Close()

	assert.Equal(t, Dimensions, e.Dimensions())
	assert.Equal(t, "custom-model", e.ModelName())
}
