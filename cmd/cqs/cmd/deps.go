package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/signalctl"
)

// depsResult is the two-directional type-dependency view `cqs deps` prints:
// every chunk that uses the named type, and every type the named chunk
// itself uses.
type depsResult struct {
	Name     string           `json:"name"`
	UsedBy   []chunk.TypeEdge `json:"used_by"`
	UsesType []chunk.TypeEdge `json:"uses_types"`
}

func newDepsCmd() *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "deps <name>",
		Short: "Show type usage edges for a type or chunk name",
		Long: `deps reports, for <name>, the chunks that use it as a type (--direction
used-by) and the types it itself uses (--direction uses). With no
--direction it reports both.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			result := depsResult{Name: args[0]}
			if direction == "" || direction == "used-by" {
				edges, err := p.Store.GetTypeUsers(ctx, args[0])
				if err != nil {
					return fmt.Errorf("deps used-by: %w", err)
				}
				result.UsedBy = edges
			}
			if direction == "" || direction == "uses" {
				edges, err := p.Store.GetTypesUsedBy(ctx, args[0])
				if err != nil {
					return fmt.Errorf("deps uses: %w", err)
				}
				result.UsesType = edges
			}

			if len(result.UsedBy) == 0 && len(result.UsesType) == 0 {
				return errExitCode(signalctl.ExitNoResults)
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "", "Limit to \"used-by\" or \"uses\" (default: both)")
	return cmd
}
