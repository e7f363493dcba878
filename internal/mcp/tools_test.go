package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/search"
)

func TestToSearchResultOutput_NilChunk(t *testing.T) {
	out := toSearchResultOutput(search.Result{Chunk: nil, Score: 0.5})
	assert.Empty(t, out.FilePath)
	assert.Empty(t, out.Name)
	assert.Zero(t, out.Score)
}

func TestToSearchResultOutput_CopiesChunkAndScoreFields(t *testing.T) {
	r := search.Result{
		Chunk: &chunk.Chunk{
			FilePath:  "internal/auth/handler.go",
			Name:      "AuthMiddleware",
			Kind:      chunk.KindFunction,
			Language:  "go",
			Signature: "func AuthMiddleware() http.Handler",
			StartLine: 10,
			EndLine:   20,
		},
		Score:     0.95,
		VecScore:  0.9,
		NameScore: 0.5,
		Source:    "vector",
	}

	out := toSearchResultOutput(r)

	assert.Equal(t, "internal/auth/handler.go", out.FilePath)
	assert.Equal(t, "AuthMiddleware", out.Name)
	assert.Equal(t, "function", out.Kind)
	assert.Equal(t, "go", out.Language)
	assert.Equal(t, "func AuthMiddleware() http.Handler", out.Signature)
	assert.Equal(t, 10, out.StartLine)
	assert.Equal(t, 20, out.EndLine)
	assert.Equal(t, 0.95, out.Score)
	assert.Equal(t, 0.9, out.VecScore)
	assert.Equal(t, 0.5, out.NameScore)
	assert.Equal(t, "vector", out.Source)
}

func TestSearchOutput_EmptyResultsMarshalsAsEmptyList(t *testing.T) {
	out := SearchOutput{Results: []SearchResultOutput{}}
	assert.Empty(t, out.Results)
	assert.NotNil(t, out.Results)
}
