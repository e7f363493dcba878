package graph

import (
	"context"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

// DeadCodeResult splits dead-code candidates into the two buckets spec
// section 4.5 names: Confident (internal visibility — nothing outside the
// package could call it, so an unreferenced name is a strong signal) and
// PossiblyPub (external visibility — exported names can be called from
// outside the indexed tree, so absence from the call graph is weaker
// evidence).
type DeadCodeResult struct {
	Confident   []store.ChunkSummary
	PossiblyPub []store.ChunkSummary
}

// DeadCode finds every chunk whose name never appears as a callee and
// which isn't itself a test, then buckets the result by the language's own
// exported-name rule.
func DeadCode(ctx context.Context, s store.Store) (*DeadCodeResult, error) {
	all, err := s.FindDeadCode(ctx, true)
	if err != nil {
		return nil, err
	}

	registry := chunk.DefaultRegistry()
	result := &DeadCodeResult{}
	for _, c := range all {
		def, ok := registry.GetByName(c.Language)
		exported := ok && def.IsExported != nil && def.IsExported(c.Name, c.Signature)
		if exported {
			result.PossiblyPub = append(result.PossiblyPub, c)
		} else {
			result.Confident = append(result.Confident, c)
		}
	}
	return result, nil
}
