package embedder

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/dshills/productrank-mcp/internal/textnorm"
)

// Local provider defaults
const (
	ProviderLocal     = "local"
	DefaultLocalModel = "hashed-terms"
	LocalDimension    = 384
)

// LocalProvider embeds text by hashing its normalized terms into a fixed
// number of signed buckets. It needs no network and is deterministic, so
// texts sharing terms land close together.
type LocalProvider struct {
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local embedder. dimension <= 0 selects LocalDimension.
func NewLocalProvider(dimension int, cache *Cache) (*LocalProvider, error) {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension, cache: cache}, nil
}

// GenerateEmbedding embeds one text
func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, l, req)
}

// GenerateBatch embeds every text
func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := embedBatch(ctx, l.cache, ProviderLocal, DefaultLocalModel, req.Texts, func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = l.vectorize(text)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("local embedding: %w", err)
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      DefaultLocalModel,
	}, nil
}

func (l *LocalProvider) vectorize(text string) []float32 {
	v := make([]float32, l.dimension)
	for _, term := range textnorm.Tokens(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()
		idx := sum % uint64(l.dimension)
		if sum>>63 == 0 {
			v[idx]++
		} else {
			v[idx]--
		}
	}
	return NormalizeVector(v)
}

// Dimension returns the vector size
func (l *LocalProvider) Dimension() int { return l.dimension }

// Provider returns "local"
func (l *LocalProvider) Provider() string { return ProviderLocal }

// Model returns the hashing scheme name
func (l *LocalProvider) Model() string { return DefaultLocalModel }

// Close is a no-op
func (l *LocalProvider) Close() error { return nil }
