package storagefx

import (
	"context"
	"fmt"

	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/storage"
	"github.com/0x5457/fs-index/internal/storage/memory"
	"github.com/0x5457/fs-index/internal/storage/sqlite"
	"github.com/0x5457/fs-index/internal/storage/sqlvec"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for storage components
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

// NewPersister opens the durable backend selected by store.driver
func NewPersister(cfg *config.Config, log *zap.Logger) (storage.Persister, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("database path must be specified")
	}
	log = log.Named("storage").With(zap.String("driver", cfg.Store.Driver), zap.String("path", cfg.Store.Path))
	switch cfg.Store.Driver {
	case "sqlite":
		return sqlite.New(cfg.Store.Path, log)
	case "sqlvec":
		return sqlvec.New(cfg.Store.Path, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewStore loads the record store and closes it when the application stops
func NewStore(params Params) (*memory.Store, error) {
	p, err := NewPersister(params.Config, params.Logger)
	if err != nil {
		return nil, err
	}
	store, err := memory.Open(context.Background(), p, params.Logger.Named("store"), params.Metrics)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// Module provides storage components
var Module = fx.Module("storage",
	fx.Provide(NewStore),
)
