package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req embeddingsRequest, call int32)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingsRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		handler(w, req, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeVectors(w http.ResponseWriter, req embeddingsRequest, reversed bool) {
	type item struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]item, len(req.Input))
	for i, text := range req.Input {
		pos := i
		if reversed {
			pos = len(req.Input) - 1 - i
		}
		data[pos] = item{Embedding: []float32{float32(len(text)), 1}, Index: i}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "data": data})
}

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestHTTPProviderBatch(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, req embeddingsRequest, _ int32) {
		assert.Equal(t, DefaultOpenAIModel, req.Model)
		writeVectors(w, req, true)
	})

	p, err := NewOpenAIProvider(RemoteConfig{APIKey: "test-key", BaseURL: srv.URL, Retry: fastRetry()}, NewCache(10))
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bbb"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{1, 1}, resp.Embeddings[0].Vector, "reordered by index")
	assert.Equal(t, []float32{3, 1}, resp.Embeddings[1].Vector)
	assert.Equal(t, ProviderOpenAI, resp.Provider)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "served from cache")
}

func TestHTTPProviderRetriesServerErrors(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, req embeddingsRequest, n int32) {
		if n < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		writeVectors(w, req, false)
	})

	p, err := NewJinaProvider(RemoteConfig{APIKey: "test-key", BaseURL: srv.URL, Retry: fastRetry()}, nil)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "speaker"})
	require.NoError(t, err)
	assert.Equal(t, ProviderJina, emb.Provider)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPProviderDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, _ embeddingsRequest, _ int32) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	p, err := NewOpenAIProvider(RemoteConfig{APIKey: "test-key", BaseURL: srv.URL, Retry: fastRetry()}, nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "speaker"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(RemoteConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestHTTPProviderBatchLimit(t *testing.T) {
	p, err := NewOpenAIProvider(RemoteConfig{APIKey: "k"}, nil)
	require.NoError(t, err)
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
		attempts++
		return 0, assert.AnError
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
