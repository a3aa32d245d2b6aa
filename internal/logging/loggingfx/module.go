package loggingfx

import (
	"context"
	"errors"
	"syscall"

	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params represents dependencies for the logger
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
}

// NewLogger creates the application logger and flushes it on stop
func NewLogger(params Params) (*zap.Logger, error) {
	log, err := logging.New(params.Config.Log)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stderr cannot be synced on some platforms
			if err := log.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
				return err
			}
			return nil
		},
	})
	return log, nil
}

// EventLogger routes fx's own events through zap
func EventLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
}

// Module provides the logger and installs it as fx's event logger
var Module = fx.Options(
	fx.Module("logging", fx.Provide(NewLogger)),
	fx.WithLogger(EventLogger),
)
