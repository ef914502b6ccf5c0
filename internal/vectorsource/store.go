package vectorsource

import (
	"context"
	"fmt"

	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/storage"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// Store answers nearest-neighbour queries from the SQLite catalog
type Store struct {
	emb    embedder.Embedder
	reader storage.Reader
	types  []types.ChunkType
}

// NewStore creates a Store. Only embeddings written by emb's provider and
// model are searched.
func NewStore(emb embedder.Embedder, reader storage.Reader, chunkTypes ...types.ChunkType) *Store {
	return &Store{emb: emb, reader: reader, types: chunkTypes}
}

// Nearest embeds query and returns up to count hits, closest first
func (s *Store) Nearest(ctx context.Context, query string, count int) ([]types.VectorHit, error) {
	if count <= 0 {
		return []types.VectorHit{}, nil
	}

	qe, err := s.emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.reader.SearchVector(ctx, qe.Vector, count, &storage.SearchFilters{
		ChunkTypes: s.types,
		Provider:   s.emb.Provider(),
		Model:      s.emb.Model(),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]types.VectorHit, len(results))
	for i, r := range results {
		hits[i] = types.VectorHit{Ref: r.Ref, Similarity: clampCosine(r.Similarity)}
	}
	return hits, nil
}

// clampCosine maps cosine similarity onto [0, 1]; opposed vectors count as unrelated
func clampCosine(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
