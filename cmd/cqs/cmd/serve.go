package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string
	var addr string
	var token string
	var offline bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over the index",
		Long: `serve exposes the index's search and graph-analysis tools to an MCP
client over stdio (the default, for editor/assistant integrations) or
a streamable HTTP transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := openProject(ctx, projectOptions{
				NeedEmbedder: true,
				NeedVector:   true,
				Offline:      offline,
			})
			if err != nil {
				return err
			}
			defer p.Close()

			srv, err := mcp.NewServer(p.Store, p.Embedder, p.Vector, p.Root, p.NotesPath())
			if err != nil {
				return fmt.Errorf("serve: init server: %w", err)
			}

			if token == "" {
				token = os.Getenv("CQS_MCP_TOKEN")
			}
			if token != "" {
				srv.SetAuthToken(token)
			}

			return srv.Serve(ctx, transport, addr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve over (stdio|http)")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8641", "Listen address for the http transport")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token required by the http transport (default: $CQS_MCP_TOKEN)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use the static embedder instead of a network embedding provider")

	return cmd
}
