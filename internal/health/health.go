// Package health produces the codebase-health snapshot behind `cqs health`:
// index size, HNSW vector count, note coverage, file staleness, dead code,
// and the call-graph hotspots/untested-hotspots lists.
package health

import (
	"context"
	"time"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/store"
)

// hotspotLimit bounds how many hotspots/untested-hotspots the report
// surfaces, matching the dashboard's "top N" framing.
const hotspotLimit = 5

// Report is one health-check snapshot.
type Report struct {
	Stats store.Stats

	// HNSWVectors is nil when no vector index has been built yet.
	HNSWVectors *int

	NoteCount    int
	NoteWarnings int // notes whose mentions match no known chunk name

	// StaleCount folds modified, not-yet-indexed and vanished files together; the
	// store interface doesn't expose enough to tell them apart without an
	// extra full-file-list query, so health reports one combined figure.
	StaleCount int

	DeadConfident int // dead code the registry is sure is exported-or-not
	DeadPossible  int // dead code found only when includePub is allowed

	Hotspots         []graph.Hotspot
	UntestedHotspots []graph.Hotspot
	Warnings         []string
}

// Check builds a Report against s. current is the on-disk file set
// (path -> mtime) used for the staleness check; hnswVectors is the live
// HNSW index's vector count, or nil if none is loaded.
func Check(ctx context.Context, s store.Store, current map[string]time.Time, hnswVectors *int) (*Report, error) {
	r := &Report{HNSWVectors: hnswVectors}

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	r.Stats = stats

	notes, err := s.GetNotes(ctx)
	if err != nil {
		r.Warnings = append(r.Warnings, "failed to load notes: "+err.Error())
	} else {
		r.NoteCount = len(notes)
		r.NoteWarnings = countDanglingMentions(ctx, s, notes)
	}

	stale, err := s.CountStaleFiles(ctx, current)
	if err != nil {
		r.Warnings = append(r.Warnings, "failed to check staleness: "+err.Error())
	} else {
		r.StaleCount = stale
	}

	confident, err := s.FindDeadCode(ctx, false)
	if err != nil {
		r.Warnings = append(r.Warnings, "failed to compute dead code: "+err.Error())
	} else {
		r.DeadConfident = len(confident)
		possible, err := s.FindDeadCode(ctx, true)
		if err != nil {
			r.Warnings = append(r.Warnings, "failed to compute possible dead code: "+err.Error())
		} else {
			r.DeadPossible = len(possible) - len(confident)
		}
	}

	hotspots, err := graph.Hotspots(ctx, s, hotspotLimit)
	if err != nil {
		r.Warnings = append(r.Warnings, "failed to compute hotspots: "+err.Error())
	} else {
		r.Hotspots = hotspots
	}

	untested, err := graph.UntestedHotspots(ctx, s, hotspotLimit)
	if err != nil {
		r.Warnings = append(r.Warnings, "failed to compute untested hotspots: "+err.Error())
	} else {
		r.UntestedHotspots = untested
	}

	return r, nil
}

// countDanglingMentions counts notes mentioning a name that no chunk in the
// index carries, a sign the note has drifted from the code it annotates.
func countDanglingMentions(ctx context.Context, s store.Store, notes []*store.Note) int {
	known := make(map[string]struct{})
	embeddings, err := s.AllEmbeddings(ctx)
	if err == nil {
		for id := range embeddings {
			if c, err := s.GetChunk(ctx, id); err == nil && c != nil {
				known[c.Name] = struct{}{}
				known[c.FilePath] = struct{}{}
			}
		}
	}

	warnings := 0
	for _, n := range notes {
		hasKnownMention := false
		for _, m := range n.Mentions {
			if _, ok := known[m]; ok {
				hasKnownMention = true
				break
			}
		}
		if len(n.Mentions) > 0 && !hasKnownMention {
			warnings++
		}
	}
	return warnings
}
