package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/store"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index size and chunk statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(ctx, projectOptions{})
			if err != nil {
				return err
			}
			defer p.Close()

			st, err := p.Store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			// Read the vector count from the HNSW index's metadata header
			// rather than loading the full graph, since stats only needs a
			// number (spec section 4.3's count_vectors_from_disk).
			vectorCount, _ := store.CountVectorsFromDisk(p.VectorPath())

			if jsonOutput {
				return printJSON(cmd, map[string]any{
					"chunk_count":    st.ChunkCount,
					"file_count":     st.FileCount,
					"vector_count":   vectorCount,
					"schema_version": st.SchemaVersion,
					"model_name":     st.ModelName,
					"last_indexed":   st.LastIndexed,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Index: %s\n", p.DataDir)
			fmt.Fprintf(w, "  chunks:  %d\n", st.ChunkCount)
			fmt.Fprintf(w, "  files:   %d\n", st.FileCount)
			fmt.Fprintf(w, "  vectors: %d\n", vectorCount)
			if st.ModelName != "" {
				fmt.Fprintf(w, "  model:   %s\n", st.ModelName)
			}
			if !st.LastIndexed.IsZero() {
				fmt.Fprintf(w, "  indexed: %s\n", st.LastIndexed.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
