package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newCalleesCmd() *cobra.Command {
	var fileHint string

	cmd := &cobra.Command{
		Use:   "callees <name>",
		Short: "List every function a named function calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			edges, err := graph.Callees(ctx, p.Store, args[0], fileHint)
			if err != nil {
				return fmt.Errorf("callees: %w", err)
			}
			if len(edges) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, edges)
		},
	}

	cmd.Flags().StringVar(&fileHint, "file", "", "Disambiguate among same-named callers by file")
	return cmd
}
