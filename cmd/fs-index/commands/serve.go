package commands

import (
	"context"

	"github.com/0x5457/fs-index/cmd/cmdsfx"
	"github.com/0x5457/fs-index/internal/indexer/indexerfx"
	"github.com/0x5457/fs-index/internal/server/serverfx"
	"github.com/spf13/cobra"
)

// NewServeCommand runs the HTTP API with background indexing until interrupted
func NewServeCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and keep the index fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunServe(ctx)
			}, serverfx.Module, indexerfx.SchedulerModule)
		},
	}
}
