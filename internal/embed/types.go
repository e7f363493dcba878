package embed

import (
	"context"
	"math"
)

// Dimensions is the fixed size of the semantic embedding vector every
// Embedder implementation must produce. The store appends a 769th
// sentiment float on top of this (see internal/store), but that dimension
// never passes through an Embedder.
const Dimensions = 768

// Embedder is the narrow capability the core needs from an embedding model
// runtime: turn text into L2-normalized vectors. Implementations are free to
// apply distinct query/document prefixes internally (Embed is used for
// queries, EmbedBatch for chunk content at index time) but the core never
// sees that detail.
type Embedder interface {
	// Embed generates an embedding for a single query string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple document texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier, recorded in index metadata so
	// a store built with a different model is detected as incompatible.
	ModelName() string

	// Close releases any resources (HTTP connections, caches) held by the
	// embedder.
	Close() error
}

// normalizeVector rescales v to unit L2 norm, leaving a zero vector
// unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
