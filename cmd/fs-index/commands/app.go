package commands

import (
	"context"
	"fmt"

	"github.com/0x5457/fs-index/cmd/cmdsfx"
	"github.com/0x5457/fs-index/internal/app/appfx"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// GlobalFlags are shared by every command and override the configuration
type GlobalFlags struct {
	ConfigPath string
	Root       string
	DBPath     string
	EmbedURL   string
}

func (g *GlobalFlags) Register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&g.ConfigPath, "config", "c", "", "YAML configuration file")
	f.StringVarP(&g.Root, "root", "r", "", "directory tree to index (overrides ROOT_PATH)")
	f.StringVar(&g.DBPath, "db", "", "index database path")
	f.StringVar(&g.EmbedURL, "embed-url", "", "embedding API URL")
}

func (g *GlobalFlags) supply() fx.Option {
	return fx.Supply(
		fx.Annotate(g.ConfigPath, fx.ResultTags(`name:"configPath"`)),
		fx.Annotate(g.Root, fx.ResultTags(`name:"root"`)),
		fx.Annotate(g.DBPath, fx.ResultTags(`name:"dbPath"`)),
		fx.Annotate(g.EmbedURL, fx.ResultTags(`name:"embedURL"`)),
	)
}

// run starts the application with the extra modules, hands the command
// runner to fn and stops the application once fn returns.
func run(
	ctx context.Context,
	g *GlobalFlags,
	fn func(context.Context, *cmdsfx.CommandRunner) error,
	extra ...fx.Option,
) (err error) {
	var runner *cmdsfx.CommandRunner
	opts := append([]fx.Option{appfx.Module, g.supply(), fx.Populate(&runner)}, extra...)
	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancel()
		if stopErr := app.Stop(stopCtx); stopErr != nil && err == nil {
			err = fmt.Errorf("failed to stop application: %w", stopErr)
		}
	}()

	return fn(ctx, runner)
}
