package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/health"
	"github.com/cqlabs/cqs/internal/indexer"
	"github.com/cqlabs/cqs/internal/store"
)

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report index size, staleness, dead code, and hotspots",
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
				return fmt.Errorf("health: scan project: %w", err)
			}

			var vectorCount *int
			if n, countErr := store.CountVectorsFromDisk(p.VectorPath()); countErr == nil {
				vectorCount = &n
			}

			report, err := health.Check(ctx, p.Store, current, vectorCount)
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}
			return printJSON(cmd, report)
		},
	}
	return cmd
}
