package appfx

import (
	"github.com/0x5457/fs-index/cmd/cmdsfx"
	"github.com/0x5457/fs-index/internal/cache/cachefx"
	"github.com/0x5457/fs-index/internal/config/configfx"
	"github.com/0x5457/fs-index/internal/embeddings/embeddingsfx"
	"github.com/0x5457/fs-index/internal/extract/extractfx"
	"github.com/0x5457/fs-index/internal/featurizer/featurizerfx"
	"github.com/0x5457/fs-index/internal/indexer/indexerfx"
	"github.com/0x5457/fs-index/internal/logging/loggingfx"
	"github.com/0x5457/fs-index/internal/mcp/mcpfx"
	"github.com/0x5457/fs-index/internal/metrics/metricsfx"
	"github.com/0x5457/fs-index/internal/parser/parserfx"
	"github.com/0x5457/fs-index/internal/search/searchfx"
	"github.com/0x5457/fs-index/internal/storage/storagefx"
	"go.uber.org/fx"
)

// Module combines all application modules. Long running commands add
// serverfx.Module and indexerfx.SchedulerModule.
var Module = fx.Options(
	configfx.Module,
	loggingfx.Module,
	metricsfx.Module,
	parserfx.Module,
	embeddingsfx.Module,
	featurizerfx.Module,
	extractfx.Module,
	storagefx.Module,
	cachefx.Module,
	indexerfx.Module,
	searchfx.Module,
	mcpfx.Module,
	cmdsfx.Module,
)
