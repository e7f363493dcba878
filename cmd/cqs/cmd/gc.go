package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/gc"
	"github.com/cqlabs/cqs/internal/indexer"
)

func newGCCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Plan (and optionally apply) pruning of stale/missing-file chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			current, err := indexer.ScanMtimes(p.Root)
			if err != nil {
				return fmt.Errorf("gc: scan project: %w", err)
			}

			report, err := gc.Plan(ctx, p.Store, current)
			if err != nil {
				return fmt.Errorf("gc: plan: %w", err)
			}

			if !apply {
				return printJSON(cmd, report)
			}

			deleted, err := gc.Apply(ctx, p.Store, report)
			if err != nil {
				return fmt.Errorf("gc: apply: %w", err)
			}
			return printJSON(cmd, map[string]int{"deleted_files": deleted})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Delete stale/missing-file chunks instead of just reporting them")
	return cmd
}
