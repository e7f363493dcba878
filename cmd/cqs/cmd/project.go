package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cqlabs/cqs/internal/config"
	"github.com/cqlabs/cqs/internal/embed"
	"github.com/cqlabs/cqs/internal/store"
)

// dataDirName is cqs's per-project data directory, sibling to .git.
const dataDirName = ".cq"

// indexDBName is the relational store file inside dataDirName.
const indexDBName = "index.db"

// vectorFileName is the HNSW vector store file inside dataDirName.
const vectorFileName = "vectors.hnsw"

// notesFileName is where `cqs suggest --apply` and `cqs search` look for
// hand-written notes, relative to the project root (spec section 6).
const notesFileName = "docs/notes.toml"

// project bundles the open handles most subcommands need: the relational
// store, an optional HNSW vector index, an optional embedder, and the
// resolved project root and config.
type project struct {
	Root     string
	DataDir  string
	Cfg      config.Config
	Store    store.Store
	Vector   store.VectorStore
	Embedder embed.Embedder

	vectorPath string
}

// projectOptions configures how openProject builds its handles.
type projectOptions struct {
	// Root overrides project-root discovery; empty means search upward
	// from the current directory.
	Root string

	// Offline forces the static hash-based embedder, skipping any model
	// download or network call.
	Offline bool

	// NeedEmbedder skips embedder construction entirely when false (some
	// commands, like callers/callees/dead-code, never touch embeddings).
	NeedEmbedder bool

	// NeedVector skips opening/loading the HNSW index when false.
	NeedVector bool
}

// openProject resolves the project root, loads .cq.yaml, and opens the
// store/vector/embedder handles opts asks for. Callers must call Close.
func openProject(ctx context.Context, opts projectOptions) (*project, error) {
	root := opts.Root
	if root == "" {
		discovered, err := config.FindProjectRoot(".")
		if err != nil {
			root, err = os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("resolve working directory: %w", err)
			}
		} else {
			root = discovered
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dataDir := filepath.Join(root, dataDirName)
	s, err := store.NewSQLiteStore(filepath.Join(dataDir, indexDBName))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	p := &project{
		Root:       root,
		DataDir:    dataDir,
		Cfg:        cfg,
		Store:      s,
		vectorPath: filepath.Join(dataDir, vectorFileName),
	}

	if opts.NeedEmbedder {
		provider := embed.ProviderRemote
		if opts.Offline {
			provider = embed.ProviderStatic
		}
		embedder, err := embed.NewEmbedder(ctx, provider, "")
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		p.Embedder = embedder
	}

	if opts.NeedVector {
		dims := 768
		if p.Embedder != nil {
			dims = p.Embedder.Dimensions()
			if dims > 768 {
				dims = 768
			}
		}
		vec, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("init vector store: %w", err)
		}
		if _, statErr := os.Stat(p.vectorPath); statErr == nil {
			if err := vec.Load(p.vectorPath); err != nil {
				p.Close()
				return nil, fmt.Errorf("load vector store: %w", err)
			}
		}
		p.Vector = vec
	}

	return p, nil
}

// VectorPath returns the path the HNSW index is persisted to, for callers
// (cqs index) that need to Save it after a run.
func (p *project) VectorPath() string {
	return p.vectorPath
}

// NotesPath returns the resolved path to the project's notes file.
func (p *project) NotesPath() string {
	return filepath.Join(p.Root, notesFileName)
}

// Close releases every handle opened by openProject, in reverse order.
func (p *project) Close() {
	if p.Vector != nil {
		_ = p.Vector.Close()
	}
	if p.Embedder != nil {
		_ = p.Embedder.Close()
	}
	if p.Store != nil {
		_ = p.Store.Close()
	}
}
