// Package indexer walks a project tree, extracts chunks with internal/chunk,
// embeds them with internal/embed, and persists the result to internal/store.
// The relational store owns its own bleve name index internally (every
// UpsertChunksBatch/DeleteChunksByFile call keeps it in sync), so this
// package only has to maintain the separate HNSW vector index alongside it.
// It implements the incremental indexing pipeline described in spec section
// 4.2/4.3: because chunk IDs are content-addressed (spec section 3), a file
// whose content hasn't changed produces the same chunk IDs on every run, so
// re-embedding is skipped whenever a previously stored embedding exists.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/embed"
	"github.com/cqlabs/cqs/internal/gitignore"
	"github.com/cqlabs/cqs/internal/output"
	"github.com/cqlabs/cqs/internal/signalctl"
	"github.com/cqlabs/cqs/internal/store"
)

// maxFileSize skips files larger than this; they are almost never source
// worth chunking and tend to be generated or vendored blobs.
const maxFileSize = 2 << 20 // 2 MiB

// maxConcurrentFiles bounds how many files are chunked and embedded at
// once, keeping memory and embedder load predictable on large trees.
const maxConcurrentFiles = 8

// Options configures one indexing run.
type Options struct {
	// RootDir is the project root to walk.
	RootDir string

	// VectorPath is where the HNSW index is persisted between runs.
	VectorPath string

	// Quiet suppresses per-file progress output.
	Quiet bool
}

// Result summarizes one indexing run for `cqs index`'s exit status and for
// the smart-default flow deciding whether indexing is needed at all.
type Result struct {
	FilesScanned  int
	FilesIndexed  int
	ChunksIndexed int
	FilesDeleted  int
	Errors        int
	Duration      time.Duration
}

// Indexer owns the chunkers and the stores a run writes to.
type Indexer struct {
	store    store.Store
	vector   store.VectorStore
	embedder embed.Embedder

	registry        *chunk.LanguageRegistry
	codeChunker     chunk.Chunker
	markdownChunker chunk.Chunker

	out *output.Writer
}

// New builds an Indexer over the given store, vector index, and embedder.
// vector may be nil; the run then skips ANN maintenance and only populates
// the relational store (which maintains its own name index internally).
func New(s store.Store, vector store.VectorStore, embedder embed.Embedder, out *output.Writer) *Indexer {
	if out == nil {
		out = output.New(os.Stderr)
	}
	return &Indexer{
		store:           s,
		vector:          vector,
		embedder:        embedder,
		registry:        chunk.NewLanguageRegistry(),
		codeChunker:     chunk.NewCodeChunker(),
		markdownChunker: chunk.NewMarkdownChunker(),
		out:             out,
	}
}

// Close releases the chunkers' parser resources. The stores passed to New
// are owned by the caller and are not closed here.
func (idx *Indexer) Close() {
	if c, ok := idx.codeChunker.(interface{ Close() }); ok {
		c.Close()
	}
}

type fileUnit struct {
	path string // relative to root
	abs  string
}

// Run walks opts.RootDir, chunks every recognized file, embeds new chunks,
// and reconciles the store against files that were deleted since the last
// run. It honors ctx cancellation and signalctl's interrupt flag between
// files, returning the partial Result accumulated so far.
func (idx *Indexer) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{}

	files, err := idx.walk(opts.RootDir)
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", opts.RootDir, err)
	}
	result.FilesScanned = len(files)

	existing, err := idx.store.AllEmbeddings(ctx)
	if err != nil {
		return result, fmt.Errorf("load existing embeddings: %w", err)
	}

	currentFiles := make(map[string]bool, len(files))
	for _, f := range files {
		currentFiles[f.path] = true
	}

	var mu sync.Mutex
	sem := semaphore.NewWeighted(maxConcurrentFiles)
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range files {
		f := f
		n := i
		if signalctl.Interrupted() {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			chunks, calls, types, embeddings, indexErr := idx.indexFile(gctx, f, existing)
			if indexErr != nil {
				mu.Lock()
				result.Errors++
				mu.Unlock()
				slog.Warn("index file failed", slog.String("file", f.path), slog.String("error", indexErr.Error()))
				return nil
			}
			if len(chunks) == 0 {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()

			stored := make([]store.StoredChunk, 0, len(chunks))
			mtime := time.Now()
			if info, statErr := os.Stat(f.abs); statErr == nil {
				mtime = info.ModTime()
			}
			for _, c := range chunks {
				stored = append(stored, store.StoredChunk{
					Chunk:     c,
					Embedding: embeddings[c.ID],
					Mtime:     mtime,
				})
			}
			if err := idx.store.UpsertChunksBatch(gctx, stored, calls, types); err != nil {
				result.Errors++
				slog.Warn("upsert chunks failed", slog.String("file", f.path), slog.String("error", err.Error()))
				return nil
			}

			if idx.vector != nil {
				var ids []string
				var vecs [][]float32
				for _, c := range chunks {
					vec := embeddings[c.ID]
					if len(vec) == 0 || idx.vector.Contains(c.ID) {
						continue
					}
					ids = append(ids, c.ID)
					vecs = append(vecs, prefix768(vec))
				}
				if len(ids) > 0 {
					if err := idx.vector.Add(gctx, ids, vecs); err != nil {
						slog.Warn("vector add failed", slog.String("file", f.path), slog.String("error", err.Error()))
					}
				}
			}
			result.FilesIndexed++
			result.ChunksIndexed += len(chunks)
			if !opts.Quiet {
				idx.out.Progress(n+1, len(files), f.path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if !opts.Quiet {
		idx.out.ProgressDone()
	}

	deleted, err := idx.reconcileDeletions(ctx, currentFiles)
	if err != nil {
		slog.Warn("reconcile deletions failed", slog.String("error", err.Error()))
	}
	result.FilesDeleted = deleted

	if idx.vector != nil && opts.VectorPath != "" {
		if err := idx.vector.Save(opts.VectorPath); err != nil {
			slog.Warn("save vector store failed", slog.String("error", err.Error()))
		}
	}

	if idx.embedder != nil {
		_ = idx.store.SetMetadata(ctx, "embedder_model", idx.embedder.ModelName())
	}
	_ = idx.store.SetMetadata(ctx, "last_indexed", time.Now().Format(time.RFC3339))

	result.Duration = time.Since(start)
	return result, nil
}

// indexFile chunks one file and embeds any chunk whose ID isn't already
// present in existing (content-addressed IDs mean an unchanged chunk keeps
// its ID, so its embedding is simply reused).
func (idx *Indexer) indexFile(ctx context.Context, f fileUnit, existing map[string][]float32) ([]*chunk.Chunk, []chunk.CallEdge, []chunk.TypeEdge, map[string][]float32, error) {
	content, err := os.ReadFile(f.abs)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	def, ok := idx.registry.GetByExtension(filepath.Ext(f.path))
	if !ok {
		return nil, nil, nil, nil, nil
	}

	input := &chunk.FileInput{Path: f.path, Content: content, Language: def.Name}

	chunker := idx.codeChunker
	if def.Name == "markdown" {
		chunker = idx.markdownChunker
	}

	chunks, err := chunker.Chunk(ctx, input)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if len(chunks) == 0 {
		return nil, nil, nil, nil, nil
	}

	var calls []chunk.CallEdge
	var types []chunk.TypeEdge
	if cc, ok := chunker.(*chunk.CodeChunker); ok {
		calls, _ = cc.ExtractCalls(ctx, input, chunks)
		types, _ = cc.ExtractTypeEdges(ctx, input, chunks)
	}

	embeddings := make(map[string][]float32, len(chunks))
	var toEmbed []*chunk.Chunk
	for _, c := range chunks {
		if vec, ok := existing[c.ID]; ok {
			embeddings[c.ID] = vec
			continue
		}
		toEmbed = append(toEmbed, c)
	}

	if len(toEmbed) > 0 && idx.embedder != nil {
		texts := make([]string, len(toEmbed))
		for i, c := range toEmbed {
			texts[i] = embedText(c)
		}
		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("embed %s: %w", f.path, err)
		}
		for i, c := range toEmbed {
			if i < len(vecs) {
				embeddings[c.ID] = append(vecs[i], 0) // 769th dim: sentiment, filled in by notes at load time
			}
		}
	}

	return chunks, calls, types, embeddings, nil
}

// embedText builds the text sent to the embedder: signature and doc string
// give the model more signal than raw source alone, matching spec section
// 4.3's description of what gets embedded.
func embedText(c *chunk.Chunk) string {
	if c.DocString != "" {
		return c.Signature + "\n" + c.DocString + "\n" + c.Source
	}
	return c.Signature + "\n" + c.Source
}

// prefix768 returns the first 768 floats of a 769-dim stored embedding, the
// slice the vector store indexes (spec section 4.3's "768 semantic floats +
// 1 sentiment").
func prefix768(v []float32) []float32 {
	if len(v) <= 768 {
		return v
	}
	return v[:768]
}

// reconcileDeletions removes chunks for files that no longer exist on disk.
// DeleteChunksByFile keeps the store's own name index in sync; the HNSW
// vector index is separate and is cleaned up here.
func (idx *Indexer) reconcileDeletions(ctx context.Context, current map[string]bool) (int, error) {
	stored, err := idx.store.ListFiles(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, file := range stored {
		if current[file] {
			continue
		}
		if idx.vector != nil {
			chunks, chunkErr := idx.store.GetChunksByFile(ctx, file)
			if chunkErr == nil && len(chunks) > 0 {
				ids := make([]string, len(chunks))
				for i, c := range chunks {
					ids[i] = c.ID
				}
				_ = idx.vector.Delete(ctx, ids)
			}
		}
		if err := idx.store.DeleteChunksByFile(ctx, file); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// walk collects every regular, non-ignored, extension-supported file under
// root, skipping .git and .cq (cqs's own data directory) the same way
// internal/mcp's scanWorkingTreeMtimes does.
func (idx *Indexer) walk(root string) ([]fileUnit, error) {
	var files []fileUnit
	matcher := gitignore.New()
	_ = matcher.AddFromFile(filepath.Join(root, ".gitignore"), "")

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			base := d.Name()
			if base == ".git" || base == ".cq" || base == "node_modules" || base == ".svn" {
				return filepath.SkipDir
			}
			if matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}
		if _, ok := idx.registry.GetByExtension(filepath.Ext(rel)); !ok {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr == nil && info.Size() > maxFileSize {
			return nil
		}
		files = append(files, fileUnit{path: filepath.ToSlash(rel), abs: path})
		return nil
	})
	return files, err
}

// ScanMtimes walks root the same way Run does and returns each tracked
// file's modification time, keyed by its path relative to root. It is used
// by health/gc callers that need the current on-disk file set without
// running a full index.
func ScanMtimes(root string) (map[string]time.Time, error) {
	current := make(map[string]time.Time)
	if root == "" {
		return current, nil
	}

	idx := &Indexer{registry: chunk.NewLanguageRegistry()}
	files, err := idx.walk(root)
	if err != nil {
		return current, err
	}
	for _, f := range files {
		if info, statErr := os.Stat(f.abs); statErr == nil {
			current[f.path] = info.ModTime()
		}
	}
	return current, nil
}
