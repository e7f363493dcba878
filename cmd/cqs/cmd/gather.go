package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newGatherCmd() *cobra.Command {
	var depth int
	var limit int

	cmd := &cobra.Command{
		Use:   "gather <seed>",
		Short: "Expand a function's callers and callees into a bounded neighborhood",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := graph.Gather(ctx, p.Store, args[0], depth, limit)
			if err != nil {
				return fmt.Errorf("gather: %w", err)
			}
			if len(result.Callers) == 0 && len(result.Callees) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 2, "Maximum hops to expand in each direction")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum nodes per direction")
	return cmd
}
