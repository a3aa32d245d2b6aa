package commands

import (
	"context"
	"strings"

	"github.com/0x5457/fs-index/cmd/cmdsfx"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/spf13/cobra"
)

func NewSearchCommand(g *GlobalFlags) *cobra.Command {
	var (
		raw     search.RawFilters
		minSize int64
		maxSize int64
		topK    int
		asJSON  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed files by natural language query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min-size") {
				raw.MinSize = &minSize
			}
			if cmd.Flags().Changed("max-size") {
				raw.MaxSize = &maxSize
			}
			query := strings.Join(args, " ")
			return run(cmd.Context(), g, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				if refresh {
					if err := r.RunIndex(ctx); err != nil {
						return err
					}
				}
				return r.RunSearch(ctx, query, raw, topK, asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&raw.FileType, "type", "", "kind (text, code, image, other) or extension")
	cmd.Flags().StringVar(&raw.MinDate, "after", "", "modified at or after (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&raw.MaxDate, "before", "", "modified at or before (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().Int64Var(&minSize, "min-size", 0, "minimum size in bytes")
	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "maximum size in bytes")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "maximum number of results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	cmd.Flags().BoolVar(&refresh, "index", false, "run an indexing pass before searching")

	return cmd
}
