// Package embedder turns product chunks and search queries into vectors.
//
// Four providers implement Embedder:
//   - openai and jina: OpenAI-compatible HTTP endpoints, retried with backoff
//   - ollama: a local Ollama server through langchaingo
//   - local: hashed term buckets, deterministic and offline
//
// All providers share an optional LRU Cache keyed by provider, model and
// text. A batch only sends the texts that miss the cache.
//
// # Basic Usage
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{chunk1.Content, chunk2.Content},
//	})
//
// # Provider Selection
//
// NewFromEnv reads PRODUCTRANK_EMBEDDING_PROVIDER first. Without it the
// first of JINA_API_KEY, OPENAI_API_KEY and OLLAMA_HOST that is set picks
// the provider, and local is the fallback.
package embedder
