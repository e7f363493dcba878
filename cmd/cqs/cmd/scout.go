package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newScoutCmd() *cobra.Command {
	var limit int
	var offline bool

	cmd := &cobra.Command{
		Use:   "scout <task description>",
		Short: "Group the chunks most relevant to a task by file, with roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{Offline: offline, NeedEmbedder: true})
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := graph.Scout(ctx, p.Store, p.Embedder, args[0], limit)
			if err != nil {
				return fmt.Errorf("scout: %w", err)
			}
			if len(result.FileGroups) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum chunks to consider before grouping")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static hash-based embeddings")
	return cmd
}
