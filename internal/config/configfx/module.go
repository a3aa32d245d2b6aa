package configfx

import (
	"fmt"

	"github.com/0x5457/fs-index/internal/config"
	"go.uber.org/fx"
)

// Params represents the values the command line may override
type Params struct {
	fx.In

	ConfigPath string `name:"configPath" optional:"true"`
	Root       string `name:"root"       optional:"true"`
	DBPath     string `name:"dbPath"     optional:"true"`
	EmbedURL   string `name:"embedURL"   optional:"true"`
}

// NewConfig loads the configuration and applies command line overrides
func NewConfig(params Params) (*config.Config, error) {
	cfg, err := config.Load(params.ConfigPath)
	if err != nil {
		return nil, err
	}

	if params.Root != "" {
		cfg.Root = params.Root
	}
	if params.DBPath != "" {
		cfg.Store.Path = params.DBPath
	}
	if params.EmbedURL != "" {
		cfg.Embedding.URL = params.EmbedURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Module provides configuration for the application
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
