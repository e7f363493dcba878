// Package suggest implements `cqs suggest`: scans the index for chunks that
// look note-worthy (risky structural patterns, call hotspots nobody tests)
// and proposes docs/notes.toml entries for them, without ever writing
// anything unless the caller chooses to apply the result.
package suggest

import (
	"context"
	"fmt"
	"sort"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/notes"
	"github.com/cqlabs/cqs/internal/search"
	"github.com/cqlabs/cqs/internal/store"
)

const untestedHotspotLimit = 20

// Suggestion is a proposed docs/notes.toml entry, not yet persisted.
type Suggestion struct {
	Text      string
	Sentiment float64
	Mentions  []string
	Reason    string
}

// ToEntry converts s to the notes.Entry shape AppendEntries persists.
func (s Suggestion) ToEntry() notes.Entry {
	return notes.Entry{Text: s.Text, Sentiment: s.Sentiment, Mentions: s.Mentions}
}

// patternAdvice maps a risky structural tag to the note text and sentiment
// suggested for a chunk carrying it.
var patternAdvice = map[search.Pattern]struct {
	text      string
	sentiment float64
	reason    string
}{
	search.PatternErrorSwallow: {
		text:      "swallows errors silently; verify that's intentional",
		sentiment: -0.6,
		reason:    "error_swallow pattern detected",
	},
	search.PatternUnsafe: {
		text:      "uses unsafe/eval-like constructs; review before trusting untrusted input",
		sentiment: -0.7,
		reason:    "unsafe pattern detected",
	},
	search.PatternMutex: {
		text:      "holds a lock; check for deadlock or contention risk under load",
		sentiment: -0.2,
		reason:    "mutex pattern detected",
	},
}

// Suggest scans every stored chunk for note-worthy patterns and call-graph
// hotspots, skipping anything existing already mentions. Results are sorted
// by mentioned name then reason for stable, diffable dry-run output.
func Suggest(ctx context.Context, s store.Store, existing []notes.Entry) ([]Suggestion, error) {
	known := mentionedSet(existing)

	embeddings, err := s.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	for id := range embeddings {
		c, err := s.GetChunk(ctx, id)
		if err != nil || c == nil {
			continue
		}
		if known[c.Name] || known[c.FilePath] {
			continue
		}
		for _, tag := range search.DetectPatterns(c.Name, c.Source) {
			advice, ok := patternAdvice[tag]
			if !ok {
				continue
			}
			suggestions = append(suggestions, Suggestion{
				Text:      fmt.Sprintf("%s: %s", c.Name, advice.text),
				Sentiment: advice.sentiment,
				Mentions:  []string{c.Name},
				Reason:    advice.reason,
			})
		}
	}

	untested, err := graph.UntestedHotspots(ctx, s, untestedHotspotLimit)
	if err != nil {
		return nil, err
	}
	for _, h := range untested {
		if known[h.Name] {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Text:      fmt.Sprintf("%s: called by %d callers with no test coverage", h.Name, h.CallerCount),
			Sentiment: -0.4,
			Mentions:  []string{h.Name},
			Reason:    "untested hotspot",
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Mentions[0] != suggestions[j].Mentions[0] {
			return suggestions[i].Mentions[0] < suggestions[j].Mentions[0]
		}
		return suggestions[i].Reason < suggestions[j].Reason
	})
	return suggestions, nil
}

// Apply persists suggestions to path via notes.AppendEntries.
func Apply(path string, suggestions []Suggestion) error {
	entries := make([]notes.Entry, len(suggestions))
	for i, s := range suggestions {
		entries[i] = s.ToEntry()
	}
	return notes.AppendEntries(path, entries)
}

func mentionedSet(entries []notes.Entry) map[string]bool {
	set := make(map[string]bool)
	for _, e := range entries {
		for _, m := range e.Mentions {
			set[m] = true
		}
	}
	return set
}
