package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newWhereCmd() *cobra.Command {
	var limit int
	var offline bool

	cmd := &cobra.Command{
		Use:   "where <description>",
		Short: "Suggest where new code matching a description belongs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{Offline: offline, NeedEmbedder: true})
			if err != nil {
				return err
			}
			defer p.Close()

			suggestions, err := graph.SuggestPlacement(ctx, p.Store, p.Embedder, args[0], limit)
			if err != nil {
				return fmt.Errorf("where: %w", err)
			}
			if len(suggestions) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, suggestions)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum suggestions to return")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static hash-based embeddings")
	return cmd
}
