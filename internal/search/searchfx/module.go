package searchfx

import (
	"github.com/0x5457/fs-index/internal/cache"
	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/featurizer"
	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/0x5457/fs-index/internal/storage/memory"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for search service
type Params struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Embedder embeddings.Embedder
	Store    *memory.Store
	Cache    *cache.Cache           `optional:"true"`
	Metrics  *metrics.Metrics       `optional:"true"`
	LLM      featurizer.LLM         `optional:"true"`
	Intent   *featurizer.Featurizer `optional:"true"`
}

// NewSearchService creates a new search service instance
func NewSearchService(params Params) *search.Service {
	cfg := params.Config
	svc := &search.Service{
		Embedder: params.Embedder,
		Store:    params.Store,
		Cache:    params.Cache,
		Options: search.Options{
			TopK:     cfg.Search.TopK,
			MaxTopK:  cfg.Search.MaxTopK,
			MinScore: cfg.Search.MinScore,
		},
		Logger:  params.Logger.Named("search"),
		Metrics: params.Metrics,
	}
	if params.Intent != nil && params.LLM != nil {
		svc.Guide = &search.Guide{
			Intent: params.Intent,
			LLM:    params.LLM,
			Model:  cfg.LLM.Model,
		}
	}
	return svc
}

// Module provides search components
var Module = fx.Module("search",
	fx.Provide(NewSearchService),
)
