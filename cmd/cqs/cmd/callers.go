package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newCallersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callers <name>",
		Short: "List every call site that invokes a named function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			edges, err := graph.Callers(ctx, p.Store, args[0])
			if err != nil {
				return fmt.Errorf("callers: %w", err)
			}
			if len(edges) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, edges)
		},
	}
	return cmd
}
