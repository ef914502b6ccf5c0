package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// Remote provider names and defaults
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"

	JinaDimension   = 1024
	OpenAIDimension = 1536

	// MaxBatchSize bounds one GenerateBatch call
	MaxBatchSize = 100
)

// HTTPProvider calls an OpenAI-compatible /v1/embeddings endpoint. Jina
// speaks the same wire format.
type HTTPProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// RemoteConfig configures an HTTPProvider
type RemoteConfig struct {
	APIKey    string
	Model     string // empty selects the provider default
	BaseURL   string // empty selects the public endpoint
	Dimension int    // empty selects the model default
	Timeout   time.Duration
	Retry     *RetryConfig
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(cfg RemoteConfig, cache *Cache) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderOpenAI, DefaultOpenAIURL, DefaultOpenAIModel, OpenAIDimension, EnvOpenAIAPIKey, cfg, cache)
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(cfg RemoteConfig, cache *Cache) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderJina, DefaultJinaURL, DefaultJinaModel, JinaDimension, EnvJinaAPIKey, cfg, cache)
}

func newHTTPProvider(name, url, model string, dim int, keyEnv string, cfg RemoteConfig, cache *Cache) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, keyEnv)
	}
	p := &HTTPProvider{
		name:      name,
		endpoint:  url,
		apiKey:    cfg.APIKey,
		model:     model,
		dimension: dim,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}
	if cfg.BaseURL != "" {
		p.endpoint = cfg.BaseURL
	}
	if cfg.Model != "" {
		p.model = cfg.Model
	}
	if cfg.Dimension > 0 {
		p.dimension = cfg.Dimension
	}
	if cfg.Timeout > 0 {
		p.httpClient.Timeout = cfg.Timeout
	}
	if cfg.Retry != nil {
		p.retry = *cfg.Retry
	}
	return p, nil
}

// GenerateEmbedding embeds one text
func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, p, req)
}

// GenerateBatch embeds up to MaxBatchSize texts in one request
func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	embeddings, err := embedBatch(ctx, p.cache, p.name, p.model, req.Texts, func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.callAPI(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.name, err)
		}
		return vectors, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      p.model,
	}, nil
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Input: texts, Model: p.model})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
		// 429 and 5xx may clear up; other client errors will not
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return nil, permanent(err)
		}
		return nil, err
	}

	var apiResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// the API may return data out of order
	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})
	vectors := make([][]float32, len(apiResp.Data))
	for i, d := range apiResp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Dimension returns the configured vector size
func (p *HTTPProvider) Dimension() int { return p.dimension }

// Provider returns the provider name
func (p *HTTPProvider) Provider() string { return p.name }

// Model returns the model name
func (p *HTTPProvider) Model() string { return p.model }

// Close releases idle connections
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
