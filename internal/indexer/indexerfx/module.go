package indexerfx

import (
	"context"

	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/extract"
	"github.com/0x5457/fs-index/internal/indexer"
	"github.com/0x5457/fs-index/internal/indexer/pipeline"
	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/storage/memory"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for the indexer
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *zap.Logger
	Extractor *extract.Extractor
	Embedder  embeddings.Embedder
	Store     *memory.Store
	Metrics   *metrics.Metrics `optional:"true"`
}

// NewIndexer creates the indexing pipeline and stops it with the application
func NewIndexer(params Params) (*pipeline.Indexer, error) {
	cfg := params.Config
	w, err := pipeline.NewWalker(config.DefaultExcludedDirs, cfg.Index.Exclude, cfg.SkipHidden(),
		cfg.DataDir, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	idx := pipeline.New(params.Extractor, params.Embedder, params.Store, w, pipeline.Options{
		Root:           cfg.Root,
		Workers:        cfg.Index.Workers,
		EmbedBatchSize: cfg.Index.EmbedBatchSize,
	}, params.Logger.Named("indexer"), params.Metrics)
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			idx.Close()
			return nil
		},
	})
	return idx, nil
}

// NewInterface exposes the pipeline through the indexer interface
func NewInterface(idx *pipeline.Indexer) indexer.Indexer { return idx }

// Module provides the indexer
var Module = fx.Module("indexer",
	fx.Provide(
		NewIndexer,
		NewInterface,
	),
)

// ScheduleParams represents dependencies for background passes
type ScheduleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Indexer   *pipeline.Indexer
}

// Schedule starts background passes with the application. Only long running
// commands include it.
func Schedule(params ScheduleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			params.Indexer.Schedule(params.Config.Index.Interval, params.Config.IndexOnStart())
			return nil
		},
	})
}

// SchedulerModule runs the indexer in the background
var SchedulerModule = fx.Module("indexer-scheduler",
	fx.Invoke(Schedule),
)
