package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newDeadCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dead-code",
		Short: "Find chunks no stored call edge ever references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := graph.DeadCode(ctx, p.Store)
			if err != nil {
				return fmt.Errorf("dead-code: %w", err)
			}
			if len(result.Confident) == 0 && len(result.PossiblyPub) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, result)
		},
	}
	return cmd
}
