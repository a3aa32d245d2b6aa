package extractfx

import (
	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/extract"
	"github.com/0x5457/fs-index/internal/featurizer"
	"github.com/0x5457/fs-index/internal/parser"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for the extractor
type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Outliners  []parser.Outliner
	Captioner  embeddings.Captioner   `optional:"true"`
	Summarizer *featurizer.Summarizer `optional:"true"`
}

// NewExtractor creates the content extractor
func NewExtractor(params Params) *extract.Extractor {
	var summarizer extract.CodeSummarizer
	if params.Summarizer != nil {
		summarizer = params.Summarizer
	}
	ic := params.Config.Index
	return extract.New(extract.Options{
		MaxChars:      ic.MaxChars,
		SummaryChars:  ic.SummaryChars,
		MaxImageBytes: ic.MaxImageBytes,
	}, params.Captioner, summarizer, params.Outliners, params.Logger.Named("extract"))
}

// Module provides the content extractor
var Module = fx.Module("extract",
	fx.Provide(NewExtractor),
)
