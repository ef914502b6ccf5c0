package embedder

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama provider defaults
const (
	ProviderOllama     = "ollama"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOllamaURL   = "http://localhost:11434"
	OllamaDimension    = 768
)

// OllamaProvider embeds through a local Ollama server
type OllamaProvider struct {
	model    string
	embedder embeddings.Embedder
	cache    *Cache
	retry    RetryConfig

	// observed vector size; 0 until the first response
	observed  atomic.Int64
	dimension int
}

// OllamaConfig configures an OllamaProvider
type OllamaConfig struct {
	Model     string
	ServerURL string
	Dimension int
	BatchSize int
}

// NewOllamaProvider connects lazily; the first embedding request reaches the server
func NewOllamaProvider(cfg OllamaConfig, cache *Cache) (*OllamaProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultOllamaURL
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = OllamaDimension
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = MaxBatchSize
	}

	client, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.ServerURL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama client: %v", ErrNoProviderEnabled, err)
	}
	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embedder: %v", ErrNoProviderEnabled, err)
	}
	return newOllamaProvider(cfg.Model, cfg.Dimension, emb, cache), nil
}

func newOllamaProvider(model string, dim int, emb embeddings.Embedder, cache *Cache) *OllamaProvider {
	return &OllamaProvider{
		model:     model,
		embedder:  emb,
		cache:     cache,
		retry:     DefaultRetryConfig(),
		dimension: dim,
	}
}

// GenerateEmbedding embeds one text
func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, o, req)
}

// GenerateBatch embeds every text
func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	result, err := embedBatch(ctx, o.cache, ProviderOllama, o.model, req.Texts, func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors, err := retryWithBackoff(ctx, o.retry, func() ([][]float32, error) {
			return o.embedder.EmbedDocuments(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: ollama: %v", ErrProviderFailed, err)
		}
		if len(vectors) > 0 {
			o.observed.Store(int64(len(vectors[0])))
		}
		return vectors, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: result,
		Provider:   ProviderOllama,
		Model:      o.model,
	}, nil
}

// Dimension returns the observed vector size, or the configured one before
// the first request
func (o *OllamaProvider) Dimension() int {
	if d := o.observed.Load(); d > 0 {
		return int(d)
	}
	return o.dimension
}

// Provider returns "ollama"
func (o *OllamaProvider) Provider() string { return ProviderOllama }

// Model returns the Ollama model name
func (o *OllamaProvider) Model() string { return o.model }

// Close is a no-op; the langchaingo client holds no resources
func (o *OllamaProvider) Close() error { return nil }
