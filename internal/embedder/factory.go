package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by NewFromEnv and DetectProvider
const (
	EnvProvider     = "PRODUCTRANK_EMBEDDING_PROVIDER"
	EnvModel        = "PRODUCTRANK_EMBEDDING_MODEL"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	CacheSize int // 0 disables the cache
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	remote := RemoteConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Dimension: cfg.Dimension}
	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(remote, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(remote, cache)
	case ProviderOllama:
		return NewOllamaProvider(OllamaConfig{Model: cfg.Model, ServerURL: cfg.BaseURL, Dimension: cfg.Dimension}, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cfg.Dimension, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// ConfigFromEnv builds a Config from the environment. An explicit provider
// wins; otherwise the first API key found picks the provider, then
// OLLAMA_HOST, then local.
func ConfigFromEnv() Config {
	cfg := Config{
		Provider:  DetectProvider(),
		Model:     os.Getenv(EnvModel),
		CacheSize: DefaultCacheSize,
	}
	switch cfg.Provider {
	case ProviderJina:
		cfg.APIKey = os.Getenv(EnvJinaAPIKey)
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
	case ProviderOllama:
		cfg.BaseURL = os.Getenv(EnvOllamaHost)
	}
	return cfg
}

// NewFromEnv creates an embedder from ConfigFromEnv
func NewFromEnv() (Embedder, error) {
	return New(ConfigFromEnv())
}

// DetectProvider returns the provider NewFromEnv would use
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvOllamaHost) != "" {
		return ProviderOllama
	}
	return ProviderLocal
}
