package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("a"), ComputeHash("a"))
	assert.NotEqual(t, ComputeHash("a"), ComputeHash("b"))
	assert.Len(t, ComputeHash(""), 64)
}

func TestCacheKeyScopesProvider(t *testing.T) {
	assert.NotEqual(t, CacheKey("local", "m", "text"), CacheKey("openai", "m", "text"))
	assert.NotEqual(t, CacheKey("local", "m1", "text"), CacheKey("local", "m2", "text"))
}

func TestValidateBatchRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a"}}))
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
}

func TestCacheReturnsCopies(t *testing.T) {
	c := NewCache(2)
	c.Set("k", &Embedding{Vector: []float32{1, 2}})

	got, ok := c.Get("k")
	require.True(t, ok)
	got.Vector[0] = 99

	again, _ := c.Get("k")
	assert.Equal(t, float32(1), again.Vector[0])

	c.Set("k2", &Embedding{})
	c.Set("k3", &Embedding{})
	assert.Equal(t, 2, c.Size())
	_, ok = c.Get("k")
	assert.False(t, ok, "oldest entry evicted")

	c.Clear()
	assert.Zero(t, c.Size())
}

func TestEmbedBatchOnlySendsMisses(t *testing.T) {
	cache := NewCache(10)
	var sent [][]string
	call := func(_ context.Context, texts []string) ([][]float32, error) {
		sent = append(sent, texts)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(len(texts[i]))}
		}
		return out, nil
	}

	ctx := context.Background()
	_, err := embedBatch(ctx, cache, "p", "m", []string{"aa"}, call)
	require.NoError(t, err)

	got, err := embedBatch(ctx, cache, "p", "m", []string{"a", "aa", "aaa"}, call)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"a", "aaa"}, sent[1])
	assert.Equal(t, []float32{1}, got[0].Vector)
	assert.Equal(t, []float32{2}, got[1].Vector)
	assert.Equal(t, []float32{3}, got[2].Vector)
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	call := func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	_, err := embedBatch(context.Background(), nil, "p", "m", []string{"a", "b"}, call)
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestLocalProvider(t *testing.T) {
	p, err := NewLocalProvider(0, NewCache(10))
	require.NoError(t, err)
	assert.Equal(t, LocalDimension, p.Dimension())
	assert.Equal(t, ProviderLocal, p.Provider())

	ctx := context.Background()
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{
		"wireless bluetooth speaker",
		"bluetooth speaker portable",
		"ergonomic office chair",
	}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)

	a, b, c := resp.Embeddings[0].Vector, resp.Embeddings[1].Vector, resp.Embeddings[2].Vector
	assert.Len(t, a, LocalDimension)
	assert.Greater(t, dot(a, b), dot(a, c))
	assert.InDelta(t, 1.0, dot(a, a), 1e-5)

	again, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "wireless bluetooth speaker"})
	require.NoError(t, err)
	assert.Equal(t, a, again.Vector)
}

func TestLocalProviderCancelled(t *testing.T) {
	p, _ := NewLocalProvider(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"x"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

type fakeLangchain struct {
	calls atomic.Int32
	fail  int32
}

func (f *fakeLangchain) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	n := f.calls.Add(1)
	if n <= f.fail {
		return nil, errors.New("connection refused")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (f *fakeLangchain) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func TestOllamaProvider(t *testing.T) {
	fake := &fakeLangchain{fail: 1}
	p := newOllamaProvider("nomic-embed-text", OllamaDimension, fake, NewCache(10))
	p.retry.BaseDelay = 0

	assert.Equal(t, OllamaDimension, p.Dimension())

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "耳機"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, emb.Provider)
	assert.Equal(t, 4, p.Dimension(), "observed size replaces the configured one")
	assert.Equal(t, int32(2), fake.calls.Load(), "one retry")

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "耳機"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.calls.Load(), "cache hit")
}

func TestOllamaProviderGivesUp(t *testing.T) {
	fake := &fakeLangchain{fail: 100}
	p := newOllamaProvider("m", 4, fake, nil)
	p.retry.BaseDelay = 0

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), fake.calls.Load())
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
