package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/diffstore"
	"github.com/cqlabs/cqs/internal/store"
)

func newDiffStoresCmd() *cobra.Command {
	var targetPath string
	var sourceName string
	var targetName string

	cmd := &cobra.Command{
		Use:   "diff-stores --target <path>",
		Short: "Semantically diff this project's index against another store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetPath == "" {
				return fmt.Errorf("diff-stores: --target is required")
			}
			ctx := cmd.Context()

			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			target, err := store.NewSQLiteStore(filepath.Join(targetPath, dataDirName, indexDBName))
			if err != nil {
				return fmt.Errorf("diff-stores: open target: %w", err)
			}
			defer target.Close()

			if sourceName == "" {
				sourceName = p.Root
			}
			if targetName == "" {
				targetName = targetPath
			}

			result, err := diffstore.Diff(ctx, p.Store, target, sourceName, targetName)
			if err != nil {
				return fmt.Errorf("diff-stores: %w", err)
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&targetPath, "target", "", "Path to the project whose index to diff against")
	cmd.Flags().StringVar(&sourceName, "source-name", "", "Display name for this project's store (default: its path)")
	cmd.Flags().StringVar(&targetName, "target-name", "", "Display name for the target store (default: its path)")
	return cmd
}
