package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/diffparse"
	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newImpactDiffCmd() *cobra.Command {
	var base string
	var maxDepth int
	var diffFile string

	cmd := &cobra.Command{
		Use:   "impact-diff",
		Short: "Map a diff's changed lines to chunks and their callers",
		Long: `impact-diff parses a unified diff (from --file, stdin, or the working
tree's git history against --base) into changed-function hunks, then
backward-BFSes the call graph from each to report every caller and test
that could be affected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			diffText, err := readDiff(cmd, diffFile, base)
			if err != nil {
				return err
			}

			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			hunks := diffparse.ParseUnifiedDiff(diffText)
			changed, err := graph.MapHunksToFunctions(ctx, p.Store, hunks)
			if err != nil {
				return fmt.Errorf("impact-diff: map hunks: %w", err)
			}
			if len(changed) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}

			result, err := graph.AnalyzeDiffImpact(ctx, p.Store, changed, maxDepth)
			if err != nil {
				return fmt.Errorf("impact-diff: analyze: %w", err)
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Git revision to diff HEAD against (default: HEAD's parent)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", graph.DefaultMaxImpactDepth, "Maximum caller backward-BFS depth")
	cmd.Flags().StringVar(&diffFile, "file", "", "Read a unified diff from this file instead of git/stdin")

	return cmd
}

// readDiff resolves the unified diff text to parse: an explicit --file, then
// piped stdin, then the project's own git history against base.
func readDiff(cmd *cobra.Command, diffFile, base string) (string, error) {
	if diffFile != "" {
		data, err := os.ReadFile(diffFile)
		if err != nil {
			return "", fmt.Errorf("read diff file: %w", err)
		}
		return string(data), nil
	}

	if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read diff from stdin: %w", err)
		}
		if len(data) > 0 {
			return string(data), nil
		}
	}

	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	diffText, err := diffparse.AcquireDiff(root, base)
	if err != nil {
		return "", fmt.Errorf("acquire diff from git: %w", err)
	}
	return diffText, nil
}
