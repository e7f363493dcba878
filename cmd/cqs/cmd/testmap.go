package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/graph"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newTestMapCmd() *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "test-map <target>",
		Short: "Find the tests that exercise a function, and their call chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := graph.TestMap(ctx, p.Store, args[0], maxDepth)
			if err != nil {
				return fmt.Errorf("test-map: %w", err)
			}
			if len(result.Tests) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "Maximum reverse call-graph depth to search")
	return cmd
}
