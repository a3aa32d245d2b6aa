package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEmbedURL  = "http://localhost:8000/embed"
	DefaultHost      = "127.0.0.1"
	DefaultPort      = 8686
	DefaultLLMModel  = "gpt-3.5-turbo"
	DefaultCaptionHF = "https://api-inference.huggingface.co/models/nlpconnect/vit-gpt2-image-captioning"
)

// DefaultExcludedDirs are directory names never descended into.
var DefaultExcludedDirs = []string{
	".git", "node_modules", "__pycache__", "venv", "env", ".env", "build", "dist",
}

type Config struct {
	Root      string          `yaml:"root"`
	DataDir   string          `yaml:"data_dir"`
	Store     StoreConfig     `yaml:"store"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Caption   CaptionConfig   `yaml:"caption"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | sqlvec
	Path   string `yaml:"path"`
}

type IndexConfig struct {
	Exclude        []string      `yaml:"exclude"`
	SkipHidden     *bool         `yaml:"skip_hidden"`
	Workers        int           `yaml:"workers"`
	EmbedBatchSize int           `yaml:"embed_batch_size"`
	MaxChars       int           `yaml:"max_chars"`
	SummaryChars   int           `yaml:"summary_chars"`
	MaxImageBytes  int64         `yaml:"max_image_bytes"`
	Interval       time.Duration `yaml:"interval"`
	OnStart        *bool         `yaml:"on_start"`
}

type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"` // api | openai | local
	URL         string        `yaml:"url"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Dimension   int           `yaml:"dimension"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
}

type CaptionConfig struct {
	Provider string `yaml:"provider"` // huggingface | openai | none
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	Model    string `yaml:"model"`
}

type LLMConfig struct {
	Provider      string        `yaml:"provider"` // openai | none
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	SummarizeCode bool          `yaml:"summarize_code"`
	GuidedSearch  bool          `yaml:"guided_search"`
}

type SearchConfig struct {
	TopK     int     `yaml:"top_k"`
	MaxTopK  int     `yaml:"max_top_k"`
	MinScore float64 `yaml:"min_score"`
}

type CacheConfig struct {
	Enabled *bool         `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads defaults, the optional YAML file at path, a .env file in the
// working directory and finally environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ROOT_PATH"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = v
		}
	}
	if v := os.Getenv("HF_BEARER_TOKEN"); v != "" && cfg.Caption.Token == "" {
		cfg.Caption.Token = v
	}
	if v := os.Getenv("API_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("API_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("DEBUG_MODE"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG_MODE: %w", err)
		}
		if debug {
			cfg.Log.Level = "debug"
		}
	}
	if v := os.Getenv("MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_RESULTS: %w", err)
		}
		cfg.Search.TopK = n
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SIMILARITY_THRESHOLD: %w", err)
		}
		cfg.Search.MinScore = f
	}
	if v := os.Getenv("ENABLE_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENABLE_CACHE: %w", err)
		}
		cfg.Cache.Enabled = &b
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = time.Duration(secs) * time.Second
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, ".fs-index")
		} else {
			cfg.DataDir = filepath.Join(os.TempDir(), "fs-index")
		}
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.DataDir, "index.db")
	}

	if cfg.Index.SkipHidden == nil {
		cfg.Index.SkipHidden = ptr(true)
	}
	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = 4
	}
	if cfg.Index.EmbedBatchSize <= 0 {
		cfg.Index.EmbedBatchSize = 32
	}
	if cfg.Index.MaxChars <= 0 {
		cfg.Index.MaxChars = 8000
	}
	if cfg.Index.SummaryChars <= 0 {
		cfg.Index.SummaryChars = 240
	}
	if cfg.Index.MaxImageBytes <= 0 {
		cfg.Index.MaxImageBytes = 10 << 20
	}
	if cfg.Index.OnStart == nil {
		cfg.Index.OnStart = ptr(true)
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "api"
	}
	if cfg.Embedding.URL == "" {
		cfg.Embedding.URL = DefaultEmbedURL
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = 384
	}
	if cfg.Embedding.Timeout <= 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxAttempts <= 0 {
		cfg.Embedding.MaxAttempts = 4
	}
	if cfg.Embedding.BackoffBase <= 0 {
		cfg.Embedding.BackoffBase = 200 * time.Millisecond
	}
	if cfg.Embedding.BackoffMax <= 0 {
		cfg.Embedding.BackoffMax = 5 * time.Second
	}

	if cfg.Caption.Provider == "" {
		cfg.Caption.Provider = "none"
	}
	if cfg.Caption.Provider == "huggingface" && cfg.Caption.URL == "" {
		cfg.Caption.URL = DefaultCaptionHF
	}
	if cfg.Caption.Provider == "openai" && cfg.Caption.Model == "" {
		cfg.Caption.Model = "gpt-4o-mini"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "none"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = 10
	}
	if cfg.Search.MaxTopK <= 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.MinScore == 0 {
		cfg.Search.MinScore = -1
	}

	if cfg.Cache.Enabled == nil {
		cfg.Cache.Enabled = ptr(true)
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = 1024
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate reports configuration errors that would make the service unusable.
func (c *Config) Validate() error {
	var err error
	if c.Root == "" {
		err = multierr.Append(err, errors.New("root path must be specified"))
	}
	switch c.Store.Driver {
	case "sqlite", "sqlvec":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Embedding.Provider {
	case "api", "openai", "local":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Caption.Provider {
	case "huggingface", "openai", "none":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown caption provider %q", c.Caption.Provider))
	}
	switch c.LLM.Provider {
	case "openai", "none":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.Search.TopK > c.Search.MaxTopK {
		err = multierr.Append(err, fmt.Errorf("search.top_k %d exceeds max_top_k %d", c.Search.TopK, c.Search.MaxTopK))
	}
	for _, pattern := range c.Index.Exclude {
		if strings.TrimSpace(pattern) == "" {
			err = multierr.Append(err, errors.New("empty exclude pattern"))
		}
	}
	return err
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) CacheEnabled() bool { return c.Cache.Enabled == nil || *c.Cache.Enabled }

func (c *Config) SkipHidden() bool { return c.Index.SkipHidden == nil || *c.Index.SkipHidden }

func (c *Config) IndexOnStart() bool { return c.Index.OnStart == nil || *c.Index.OnStart }

func ptr[T any](v T) *T { return &v }
