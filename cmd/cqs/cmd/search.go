package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/notes"
	"github.com/cqlabs/cqs/internal/search"
	"github.com/cqlabs/cqs/internal/signalctl"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var threshold float64
	var language string
	var kind string
	var pathGlob string
	var nameOnly bool
	var semanticOnly bool
	var asJSON bool
	var offline bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid semantic + lexical search over the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := openProject(ctx, projectOptions{
				Offline:      offline,
				NeedEmbedder: !nameOnly,
			})
			if err != nil {
				return err
			}
			defer p.Close()

			opts := search.DefaultOptions()
			opts.Limit = p.Cfg.Limit
			opts.Threshold = p.Cfg.Threshold
			opts.NameBoost = p.Cfg.NameBoost
			if limit > 0 {
				opts.Limit = limit
			}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = threshold
			}
			opts.Language = language
			opts.Kind = kind
			opts.PathGlob = pathGlob
			opts.NameOnly = nameOnly
			opts.SemanticOnly = semanticOnly

			var entries []notes.Entry
			if notesEntries, err := notes.LoadFile(p.NotesPath()); err == nil {
				entries = notesEntries
			}

			var embedder search.Embedder
			if p.Embedder != nil {
				embedder = p.Embedder
			}

			results, err := search.Search(ctx, p.Store, embedder, args[0], opts, entries)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			return printSearchResults(cmd, results, asJSON)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results to return (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum hybrid score to return")
	cmd.Flags().StringVar(&language, "language", "", "Filter to one language")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter to one chunk kind")
	cmd.Flags().StringVar(&pathGlob, "path", "", "Filter to paths matching a shell glob")
	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "Match only on chunk name, skip embeddings")
	cmd.Flags().BoolVar(&semanticOnly, "semantic-only", false, "Skip the lexical name-boost term")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static hash-based embeddings")

	return cmd
}

// searchResultJSON is the stable on-wire shape for --json output,
// independent of search.Result's internal layout.
type searchResultJSON struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	File      string  `json:"file"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score"`
	Signature string  `json:"signature,omitempty"`
	Source    string  `json:"source,omitempty"`
}

func toSearchResultJSON(results []search.Result) []searchResultJSON {
	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{
			Name:      r.Chunk.Name,
			Kind:      string(r.Chunk.Kind),
			File:      r.Chunk.FilePath,
			StartLine: r.Chunk.StartLine,
			EndLine:   r.Chunk.EndLine,
			Score:     r.Score,
			Signature: r.Chunk.Signature,
			Source:    r.Source,
		}
	}
	return out
}

func printSearchResults(cmd *cobra.Command, results []search.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(toSearchResultJSON(results))
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return errExitCode(signalctl.ExitNoResults)
	}

	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%.3f  %s:%d  %s\n", r.Score, r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.Signature)
	}
	return nil
}
