package cachefx

import (
	"github.com/0x5457/fs-index/internal/cache"
	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/metrics"
	"go.uber.org/fx"
)

// Params represents dependencies for the result cache
type Params struct {
	fx.In

	Config  *config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

// NewCache returns nil when caching is disabled; a nil cache never hits
func NewCache(params Params) *cache.Cache {
	if !params.Config.CacheEnabled() {
		return nil
	}
	return cache.New(params.Config.Cache.Size, params.Config.Cache.TTL, params.Metrics)
}

// Module provides the query result cache
var Module = fx.Module("cache",
	fx.Provide(NewCache),
)
