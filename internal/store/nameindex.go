package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	nameTokenizerName = "cqs_name_tokenizer"
	nameAnalyzerName  = "cqs_name_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(nameTokenizerName, nameTokenizerConstructor)
}

// NameIndex is a bleve keyword index over chunk names and signatures. It
// backs search_by_name's fuzzy fallback, consulted when the SQL substring
// match finds nothing; hybrid search computes its name score without it.
type NameIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// nameDoc is the document shape stored per chunk id.
type nameDoc struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// NewNameIndex opens (creating if needed) a name index at path. path == ""
// opens an in-memory index, used by tests.
func NewNameIndex(path string) (*NameIndex, error) {
	m, err := buildNameMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create name index directory: %w", mkErr)
			}
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open name index: %w", err)
	}

	return &NameIndex{index: idx, path: path}, nil
}

func buildNameMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(nameAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     nameTokenizerName,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("add name analyzer: %w", err)
	}
	m.DefaultAnalyzer = nameAnalyzerName
	return m, nil
}

// Upsert indexes or reindexes one chunk's name and signature under id.
func (n *NameIndex) Upsert(id, name, signature string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("name index is closed")
	}
	return n.index.Index(id, nameDoc{Name: name, Signature: signature})
}

// UpsertBatch indexes a batch of chunks in one transaction.
func (n *NameIndex) UpsertBatch(docs map[string]nameDoc) error {
	if len(docs) == 0 {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("name index is closed")
	}
	batch := n.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", id, err)
		}
	}
	return n.index.Batch(batch)
}

// Delete removes the given chunk ids from the name index.
func (n *NameIndex) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("name index is closed")
	}
	batch := n.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return n.index.Batch(batch)
}

// Search returns chunk ids whose name or signature matches query, best
// BM25 score first. Used as the fuzzy fallback for search_by_name.
func (n *NameIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil, fmt.Errorf("name index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	q := bleve.NewDisjunctionQuery(
		bleve.NewMatchQuery(query),
		bleve.NewMatchPhraseQuery(query),
	)
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	result, err := n.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("name index search: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the underlying bleve index.
func (n *NameIndex) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.index.Close()
}

// nameTokenizerConstructor adapts TokenizeCode (camelCase/snake_case
// splitting, short-token filtering) to bleve's analysis.Tokenizer interface.
func nameTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &codeNameTokenizer{}, nil
}

type codeNameTokenizer struct{}

func (t *codeNameTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	stream := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), tok)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(tok)
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return stream
}
