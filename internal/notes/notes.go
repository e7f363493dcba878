// Package notes loads docs/notes.toml, the free-form annotation file spec
// section 6 names as the project's optional sentiment-bearing notes source.
// Each note's mentions are code path fragments or identifiers; at query
// time, hybrid search adds the sentiment of notes matching a chunk's file or
// name to that chunk's score. Indexing does not consult notes: the stored
// embedding's 769th float (beyond the 768-wide semantic vector) is written
// as 0 and is used only when no note matches.
package notes

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	cqserrors "github.com/cqlabs/cqs/internal/errors"
	"github.com/cqlabs/cqs/internal/store"
)

// SentimentDim is the embedding index sentiment occupies, one past the
// semantic vector's 768 floats.
const SentimentDim = 768

// Entry is one [[note]] record from notes.toml.
type Entry struct {
	Text      string   `toml:"text"`
	Sentiment float64  `toml:"sentiment"`
	Mentions  []string `toml:"mentions"`
}

type notesFile struct {
	Note []Entry `toml:"note"`
}

// LoadFile reads and parses path. A missing file is not an error — callers
// treat it the same as an empty note set, since docs/notes.toml is optional.
func LoadFile(path string) ([]Entry, error) {
	var f notesFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cqserrors.New(cqserrors.ErrCodeConfigInvalid, "parse notes.toml", err)
	}
	_ = meta
	return f.Note, nil
}

// ParseString parses TOML note content directly, used by tests and by
// callers that already have the file contents in memory.
func ParseString(content string) ([]Entry, error) {
	var f notesFile
	if _, err := toml.Decode(content, &f); err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeConfigInvalid, "parse notes", err)
	}
	return f.Note, nil
}

// ToStoreNote converts a parsed entry to the persisted store.Note shape.
// Embedding is left nil; the caller embeds note text separately.
func ToStoreNote(e Entry) *store.Note {
	return &store.Note{
		Text:      e.Text,
		Sentiment: e.Sentiment,
		Mentions:  e.Mentions,
	}
}

// SentimentForChunk returns the sentiment of the notes that match a chunk,
// matching a note's mentions against the chunk's file path or name
// as substrings. When multiple notes match, their sentiments are averaged;
// ok is false when nothing matches, leaving the chunk's sentiment
// dimension untouched.
func SentimentForChunk(entries []Entry, filePath, name string) (sentiment float64, ok bool) {
	var sum float64
	var count int
	for _, e := range entries {
		for _, m := range e.Mentions {
			if m == "" {
				continue
			}
			if strings.Contains(filePath, m) || strings.Contains(name, m) || strings.Contains(m, name) {
				sum += e.Sentiment
				count++
				break
			}
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// AppendEntries loads path's existing entries (if any), appends new ones,
// and rewrites the file as a single [[note]] array. Used by `cqs suggest
// --apply` to persist accepted suggestions without disturbing entries
// already on disk.
func AppendEntries(path string, newEntries []Entry) error {
	existing, err := LoadFile(path)
	if err != nil {
		return err
	}
	f := notesFile{Note: append(existing, newEntries...)}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cqserrors.New(cqserrors.ErrCodeInternal, "create notes dir", err)
		}
	}

	fh, err := os.Create(path)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeInternal, "create notes.toml", err)
	}
	defer fh.Close()

	enc := toml.NewEncoder(fh)
	if err := enc.Encode(f); err != nil {
		return cqserrors.New(cqserrors.ErrCodeInternal, "write notes.toml", err)
	}
	return nil
}

// ApplySentiment returns a copy of vec with its sentiment dimension set,
// growing the vector to SentimentDim+1 floats if it was exactly 768-wide.
func ApplySentiment(vec []float32, sentiment float64) []float32 {
	out := make([]float32, SentimentDim+1)
	copy(out, vec)
	out[SentimentDim] = float32(sentiment)
	return out
}
