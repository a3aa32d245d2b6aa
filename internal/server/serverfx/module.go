package serverfx

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/0x5457/fs-index/internal/cache"
	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/indexer"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/0x5457/fs-index/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Params represents dependencies for the HTTP API
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *zap.Logger
	Search    *search.Service
	Indexer   indexer.Indexer
	Cache     *cache.Cache         `optional:"true"`
	Registry  *prometheus.Registry `optional:"true"`
}

// NewServer builds the HTTP API and serves it for the lifetime of the application
func NewServer(params Params) *http.Server {
	cfg := params.Config
	log := params.Logger.Named("http")

	h := server.NewHandlers(params.Search, params.Indexer, params.Cache, cfg.Server.RequestTimeout, log)
	var gatherer prometheus.Gatherer
	if params.Registry != nil {
		gatherer = params.Registry
	}
	handler := server.AccessLog(log, server.CORS(cfg.Server.CORSOrigins, server.NewMux(h, gatherer)))
	srv := server.New(cfg.Addr(), handler)

	served := make(chan error, 1)
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("listening", zap.String("addr", ln.Addr().String()))
			go func() {
				err := srv.Serve(ln)
				if errors.Is(err, http.ErrServerClosed) {
					err = nil
				}
				served <- err
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			select {
			case serveErr := <-served:
				err = multierr.Append(err, serveErr)
			case <-ctx.Done():
				err = multierr.Append(err, ctx.Err())
			}
			return err
		},
	})
	return srv
}

// Module provides the HTTP API server
var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(func(*http.Server) {}),
)
