package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/notes"
	"github.com/cqlabs/cqs/internal/suggest"
)

func newSuggestCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose notes.toml entries for risky or untested chunks",
		Long: `suggest scans the index for chunks matching risky structural patterns
or call-graph hotspots with no test coverage, and proposes a note for each.
By default it only prints the proposals; --apply writes them to
docs/notes.toml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			var existing []notes.Entry
			if entries, err := notes.LoadFile(p.NotesPath()); err == nil {
				existing = entries
			}

			suggestions, err := suggest.Suggest(ctx, p.Store, existing)
			if err != nil {
				return fmt.Errorf("suggest: %w", err)
			}

			if !apply {
				return printJSON(cmd, suggestions)
			}
			if err := suggest.Apply(p.NotesPath(), suggestions); err != nil {
				return fmt.Errorf("suggest: apply: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d note(s) to %s\n", len(suggestions), p.NotesPath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Write proposed notes to docs/notes.toml")
	return cmd
}
