package commands

import (
	"context"

	"github.com/0x5457/fs-index/cmd/cmdsfx"
	"github.com/0x5457/fs-index/internal/indexer/indexerfx"
	"github.com/spf13/cobra"
)

// NewMCPServeCommand runs an MCP server exposing the search and index tools
func NewMCPServeCommand(g *GlobalFlags) *cobra.Command {
	var (
		transport string
		address   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP server",
		Long:  "Run MCP server, provide search_files, reindex and index_stats tools.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, func(_ context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunMCPServer(transport, address)
			}, indexerfx.SchedulerModule)
		},
	}

	cmd.Flags().
		StringVarP(&transport, "transport", "t", "stdio", "transport (stdio, http, sse)")
	cmd.Flags().StringVarP(&address, "address", "a", "", "server address (http modes), e.g. :8080")

	return cmd
}
