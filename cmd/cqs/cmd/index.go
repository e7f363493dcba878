package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/indexer"
	"github.com/cqlabs/cqs/internal/output"
)

func newIndexCmd() *cobra.Command {
	var offline bool
	var path string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Chunk, embed, and persist a project into the local index",
		Long: `index walks a project tree, extracts chunks with tree-sitter, embeds new
or changed chunks, and writes the result to .cq/index.db and .cq/vectors.hnsw.
Re-running it is incremental: unchanged content is never re-embedded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				path = args[0]
			}
			return runIndex(cmd, path, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static hash-based embeddings, no model download")
	cmd.Flags().StringVar(&path, "path", "", "Project root to index (default: discovered from cwd)")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, offline bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	p, err := openProject(ctx, projectOptions{
		Root:         path,
		Offline:      offline,
		NeedEmbedder: true,
		NeedVector:   true,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	if err := os.MkdirAll(p.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Single-writer advisory lock around the batch-commit path: two
	// concurrent `cqs index` invocations against the same project would
	// otherwise race on index.db and vectors.hnsw.
	lockPath := filepath.Join(p.DataDir, indexDBName+".lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another cqs index is already running against %s", p.Root)
	}
	defer func() { _ = lock.Unlock() }()

	idx := indexer.New(p.Store, p.Vector, p.Embedder, out)
	defer idx.Close()

	out.Status("→", fmt.Sprintf("indexing %s", p.Root))
	result, err := idx.Run(ctx, indexer.Options{
		RootDir:    p.Root,
		VectorPath: p.VectorPath(),
	})
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	out.Successf("indexed %d files (%d chunks, %d deleted, %d errors) in %s",
		result.FilesIndexed, result.ChunksIndexed, result.FilesDeleted, result.Errors,
		result.Duration.Round(time.Millisecond))
	return nil
}
