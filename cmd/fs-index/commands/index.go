package commands

import (
	"context"

	"github.com/0x5457/fs-index/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

func NewIndexCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Run one indexing pass over the root and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunIndex(ctx)
			})
		},
	}
}
