// Package store is the persistence layer: an embedded SQL database holding
// chunks, call/type edges, notes, and index metadata (schema.go, sqlite.go),
// a bleve-backed lexical name index (nameindex.go), and an HNSW vector index
// (hnsw.go) over the 768-prefix of stored embeddings.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cqlabs/cqs/internal/chunk"
)

// CurrentSchemaVersion is the schema version this build of cqs writes and
// expects. Bumping it requires a migration step in schema.go's migration
// chain.
const CurrentSchemaVersion = 1

// ChunkSummary is a lightweight projection of a stored chunk, used by
// name-search and most graph queries that don't need the full source text.
type ChunkSummary struct {
	ID        string
	FilePath  string
	Language  string
	Kind      chunk.Kind
	Name      string
	Signature string
	StartLine int
	EndLine   int
}

// StoredChunk pairs a chunk with its persisted embedding and the file mtime
// observed when it was indexed, the unit upsert_chunks_batch operates on.
type StoredChunk struct {
	Chunk     *chunk.Chunk
	Embedding []float32 // 769-dim: 768 semantic floats + 1 sentiment
	Mtime     time.Time
}

// CallEdgeRecord is one function_calls row as stored (no join against
// chunks), the shape returned by get_callers_full / get_callees_full.
type CallEdgeRecord struct {
	CallerFile string
	CallerName string
	CallerLine int
	CalleeName string
	CallLine   int
}

// CallGraph is the two name-keyed adjacency-map view get_call_graph builds;
// every graph operation in internal/graph consumes this shape.
type CallGraph struct {
	Forward map[string][]string // caller name -> callee names
	Reverse map[string][]string // callee name -> caller names
}

// Stats summarizes an index for the `cqs health`/`cqs index info` surfaces.
type Stats struct {
	ChunkCount    int
	FileCount     int
	SchemaVersion int
	ModelName     string
	LastIndexed   time.Time
}

// Note is a free-form annotation with its own embedding; mentions are code
// path fragments or identifiers matched against chunk files and names when
// search applies the note's sentiment.
type Note struct {
	ID        int64
	Text      string
	Sentiment float64
	Mentions  []string
	Embedding []float32
}

// Store is the embedded-SQL persistence layer described by spec section 4.2.
// All methods return plain value records; no handles or cursors leak out.
type Store interface {
	// UpsertChunksBatch performs, within one transaction: delete existing
	// rows sharing an id with the incoming batch; insert the new rows;
	// delete stale call-graph and type-edge rows for the files being
	// rewritten; insert the batch's fresh edges. Callers pass the full set
	// of call/type edges for every file represented in chunks.
	UpsertChunksBatch(ctx context.Context, chunks []StoredChunk, calls []chunk.CallEdge, types []chunk.TypeEdge) error

	// DeleteChunksByFile removes every chunk, call edge, and type edge
	// belonging to file. Used when a file is deleted or goes out of scope.
	DeleteChunksByFile(ctx context.Context, file string) error

	GetChunk(ctx context.Context, id string) (*chunk.Chunk, error)
	GetChunksByFile(ctx context.Context, file string) ([]*chunk.Chunk, error)
	AllEmbeddings(ctx context.Context) (map[string][]float32, error)

	// SearchByName does a substring match on name, ordered by
	// (exact-match-first, shorter-name-first).
	SearchByName(ctx context.Context, query string, limit int) ([]ChunkSummary, error)

	GetCallersFull(ctx context.Context, name string) ([]CallEdgeRecord, error)
	GetCalleesFull(ctx context.Context, name, fileHint string) ([]CallEdgeRecord, error)
	GetTypeUsers(ctx context.Context, typeName string) ([]chunk.TypeEdge, error)
	GetTypesUsedBy(ctx context.Context, chunkName string) ([]chunk.TypeEdge, error)

	FindTestChunks(ctx context.Context) ([]ChunkSummary, error)
	FindDeadCode(ctx context.Context, includePub bool) ([]ChunkSummary, error)

	CountStaleFiles(ctx context.Context, current map[string]time.Time) (int, error)
	CheckOriginsStale(ctx context.Context, origins []string, root string) (bool, error)

	// ListFiles returns every distinct file path with at least one stored
	// chunk, the set `cqs gc` diffs against the on-disk file list.
	ListFiles(ctx context.Context) ([]string, error)

	Stats(ctx context.Context) (Stats, error)
	ChunkCount(ctx context.Context) (int, error)
	GetCallGraph(ctx context.Context) (*CallGraph, error)

	GetMetadata(ctx context.Context, key string) (string, bool, error)
	SetMetadata(ctx context.Context, key, value string) error

	SaveNote(ctx context.Context, note *Note) error
	GetNotes(ctx context.Context) ([]*Note, error)

	Close() error
}

// VectorResult is a single ANN search hit.
type VectorResult struct {
	ID       string  // chunk ID
	Distance float32 // lower is more similar
	Score    float32 // normalized similarity, 0-1
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension. 768 for the semantic prefix alone;
	// callers store the full 769-dim vector elsewhere and slice before Add.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfConstruction is HNSW build-time search width.
	EfConstruction int

	// EfSearch is HNSW query-time search width; may be raised per query.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the 768-float
// semantic prefix.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore is a Hierarchical Navigable Small World index over the
// 768-prefix of stored embeddings (spec section 4.3). If absent, search
// falls back to an exact linear scan over AllEmbeddings.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector presented to the store doesn't
// match its configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'cqs index --force')", e.Expected, e.Got)
}
