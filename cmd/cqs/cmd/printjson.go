package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// printJSON pretty-prints v to cmd's configured output writer. Every
// graph/store-backed command prints JSON by default since their output is
// structured data meant for scripting or MCP tool responses, not prose.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
