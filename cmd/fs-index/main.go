package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/0x5457/fs-index/cmd/fs-index/commands"
	"github.com/spf13/cobra"
)

func main() {
	var flags commands.GlobalFlags

	rootCmd := &cobra.Command{
		Use:           "fs-index",
		Short:         "Semantic search over a directory tree",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.Register(rootCmd)

	rootCmd.AddCommand(
		commands.NewServeCommand(&flags),
		commands.NewIndexCommand(&flags),
		commands.NewSearchCommand(&flags),
		commands.NewStatsCommand(&flags),
		commands.NewMCPServeCommand(&flags),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
