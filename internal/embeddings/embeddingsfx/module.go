package embeddingsfx

import (
	"fmt"

	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for embeddings components
type Params struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// Result exposes the retrying client under both capabilities
type Result struct {
	fx.Out

	Client   *embeddings.Resilient
	Embedder embeddings.Embedder

	// nil when no captioning provider is configured
	Captioner embeddings.Captioner
}

// NewEmbedder creates the configured provider without retries
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case "api":
		return embeddings.NewApi(ec.URL), nil
	case "openai":
		return embeddings.NewOpenAI(embeddings.OpenAIConfig{
			APIKey:  ec.APIKey,
			BaseURL: ec.BaseURL,
			Model:   ec.Model,
		}), nil
	case "local":
		return embeddings.NewLocal(ec.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}

// NewCaptioner creates the configured captioner, or nil when captioning is off
func NewCaptioner(cfg *config.Config) (embeddings.Captioner, error) {
	cc := cfg.Caption
	switch cc.Provider {
	case "none":
		return nil, nil
	case "huggingface":
		return embeddings.NewHuggingFace(cc.URL, cc.Token), nil
	case "openai":
		return embeddings.NewOpenAICaptioner(embeddings.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cc.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown caption provider %q", cc.Provider)
	}
}

// NewClient wraps the providers with timeouts and retries
func NewClient(params Params) (Result, error) {
	e, err := NewEmbedder(params.Config)
	if err != nil {
		return Result{}, err
	}
	c, err := NewCaptioner(params.Config)
	if err != nil {
		return Result{}, err
	}
	ec := params.Config.Embedding
	client := embeddings.NewResilient(e, c, embeddings.RetryPolicy{
		Timeout:     ec.Timeout,
		MaxAttempts: ec.MaxAttempts,
		BaseDelay:   ec.BackoffBase,
		MaxDelay:    ec.BackoffMax,
	}, params.Logger.Named("embeddings"), params.Metrics)
	res := Result{Client: client, Embedder: client}
	if c != nil {
		res.Captioner = client
	}
	return res, nil
}

// Module provides embeddings components
var Module = fx.Module("embeddings",
	fx.Provide(NewClient),
)
