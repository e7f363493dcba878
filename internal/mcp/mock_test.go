package mcp

import (
	"context"
	"time"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to exercise tool
// handlers without a real SQLite-backed store. Tests set only the fields a
// given handler path reads.
type fakeStore struct {
	chunks map[string]*chunk.Chunk

	callers   []store.CallEdgeRecord
	callees   []store.CallEdgeRecord
	typeUsers []chunk.TypeEdge
	typesUsed []chunk.TypeEdge

	testChunks []store.ChunkSummary
	deadCode   []store.ChunkSummary

	staleCount int
	files      []string

	stats   store.Stats
	notes   []*store.Note
	metadata map[string]string

	err error // if set, every method that can fail returns this
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chunks:   make(map[string]*chunk.Chunk),
		metadata: make(map[string]string),
	}
}

func (f *fakeStore) UpsertChunksBatch(ctx context.Context, chunks []store.StoredChunk, calls []chunk.CallEdge, types []chunk.TypeEdge) error {
	return f.err
}

func (f *fakeStore) DeleteChunksByFile(ctx context.Context, file string) error { return f.err }

func (f *fakeStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[id], nil
}

func (f *fakeStore) GetChunksByFile(ctx context.Context, file string) ([]*chunk.Chunk, error) {
	return nil, f.err
}

func (f *fakeStore) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	return nil, f.err
}

func (f *fakeStore) SearchByName(ctx context.Context, query string, limit int) ([]store.ChunkSummary, error) {
	return nil, f.err
}

func (f *fakeStore) GetCallersFull(ctx context.Context, name string) ([]store.CallEdgeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.callers, nil
}

func (f *fakeStore) GetCalleesFull(ctx context.Context, name, fileHint string) ([]store.CallEdgeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.callees, nil
}

func (f *fakeStore) GetTypeUsers(ctx context.Context, typeName string) ([]chunk.TypeEdge, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.typeUsers, nil
}

func (f *fakeStore) GetTypesUsedBy(ctx context.Context, chunkName string) ([]chunk.TypeEdge, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.typesUsed, nil
}

func (f *fakeStore) FindTestChunks(ctx context.Context) ([]store.ChunkSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.testChunks, nil
}

func (f *fakeStore) FindDeadCode(ctx context.Context, includePub bool) ([]store.ChunkSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.deadCode, nil
}

func (f *fakeStore) CountStaleFiles(ctx context.Context, current map[string]time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.staleCount, nil
}

func (f *fakeStore) CheckOriginsStale(ctx context.Context, origins []string, root string) (bool, error) {
	return false, f.err
}

func (f *fakeStore) ListFiles(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

func (f *fakeStore) Stats(ctx context.Context) (store.Stats, error) {
	if f.err != nil {
		return store.Stats{}, f.err
	}
	return f.stats, nil
}

func (f *fakeStore) ChunkCount(ctx context.Context) (int, error) {
	return len(f.chunks), f.err
}

func (f *fakeStore) GetCallGraph(ctx context.Context) (*store.CallGraph, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.CallGraph{Forward: map[string][]string{}, Reverse: map[string][]string{}}, nil
}

func (f *fakeStore) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.metadata[key]
	return v, ok, nil
}

func (f *fakeStore) SetMetadata(ctx context.Context, key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.metadata[key] = value
	return nil
}

func (f *fakeStore) SaveNote(ctx context.Context, note *store.Note) error {
	if f.err != nil {
		return f.err
	}
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeStore) GetNotes(ctx context.Context) ([]*store.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.notes, nil
}

func (f *fakeStore) Close() error { return nil }

var _ store.Store = (*fakeStore)(nil)

// fakeEmbedder returns a fixed vector regardless of input.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.vec != nil {
		return e.vec, nil
	}
	return make([]float32, 768), nil
}

// fakeVectorStore is a no-op store.VectorStore stub for health/count wiring.
type fakeVectorStore struct {
	count int
}

func (v *fakeVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	return nil
}
func (v *fakeVectorStore) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return nil, nil
}
func (v *fakeVectorStore) Delete(ctx context.Context, ids []string) error { return nil }
func (v *fakeVectorStore) AllIDs() []string                               { return nil }
func (v *fakeVectorStore) Contains(id string) bool                       { return false }
func (v *fakeVectorStore) Count() int                                    { return v.count }
func (v *fakeVectorStore) Save(path string) error                        { return nil }
func (v *fakeVectorStore) Load(path string) error                        { return nil }
func (v *fakeVectorStore) Close() error                                  { return nil }

var _ store.VectorStore = (*fakeVectorStore)(nil)
