package featurizerfx

import (
	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/featurizer"
	"go.uber.org/fx"
)

// summaryInputChars matches the original 5000 token budget closely enough
const summaryInputChars = 16000

// Result exposes the language model and what is built on it. Every field is
// nil when no LLM provider is configured.
type Result struct {
	fx.Out

	LLM        featurizer.LLM
	Summarizer *featurizer.Summarizer
	Intent     *featurizer.Featurizer
}

// LLMConfig converts the application settings into provider settings
func LLMConfig(cfg *config.Config) featurizer.LLMConfig {
	return featurizer.LLMConfig{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}
}

// NewLLM wires the configured provider
func NewLLM(cfg *config.Config) Result {
	if cfg.LLM.Provider != "openai" {
		return Result{}
	}
	llm := featurizer.NewOpenAILLM(LLMConfig(cfg))
	res := Result{LLM: llm}
	if cfg.LLM.SummarizeCode {
		res.Summarizer = &featurizer.Summarizer{
			LLM:           llm,
			Model:         cfg.LLM.Model,
			MaxInputChars: summaryInputChars,
		}
	}
	if cfg.LLM.GuidedSearch {
		intent := featurizer.NewImageIntent(llm)
		res.Intent = &intent
	}
	return res
}

// Module provides LLM backed components
var Module = fx.Module("featurizer",
	fx.Provide(NewLLM),
)
