package search

import (
	"context"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

// Embedder is the narrow embedding capability hybrid search needs: turn a
// query into the embedder's query-prefixed 768-float space. Kept as a local
// interface (matching internal/graph's Embedder) so this package never
// imports internal/embed directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ReferenceStore is one additional store.Store consulted during multi-source
// blending (spec section 4.4 step 7), scaled by Weight before merging.
type ReferenceStore struct {
	Name   string
	Store  store.Store
	Weight float64
}

// Options configures one hybrid-search query, matching spec section 4.4's
// parameter list exactly.
type Options struct {
	Limit        int
	Threshold    float64
	Language     string
	Kind         string // empty means any chunk kind
	PathGlob     string // shell-style glob, matched against FilePath
	NameOnly     bool
	SemanticOnly bool
	NameBoost    float64 // weight given to lexical name match, 0-1
	NoteWeight   float64 // weight given to sentiment adjustment
	Pattern      Pattern // empty means no structural-pattern filter
	Sources      []ReferenceStore
}

// DefaultOptions returns spec section 4.4's implied defaults: no filters, a
// 10-result limit, zero threshold, and name_boost/note_weight at a
// noticeable-but-not-dominant 0.3/0.2.
func DefaultOptions() Options {
	return Options{
		Limit:      10,
		Threshold:  0,
		NameBoost:  0.3,
		NoteWeight: 0.2,
	}
}

// Result is one hybrid-search hit: the chunk plus its combined score.
type Result struct {
	Chunk     *chunk.Chunk
	Score     float64
	VecScore  float64
	NameScore float64
	Source    string // "" for the primary store, else the ReferenceStore.Name
}
