package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/productrank-mcp/internal/config"
	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/storage"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// newTestService opens a Service over an in-memory catalog with local
// embeddings
func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = ":memory:"
	cfg.Embedding.Provider = embedder.ProviderLocal
	cfg.Embedding.Dimension = 64
	cfg.Lexical.Workers = 2

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	svc, err := New(context.Background(), cfg, store, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestServiceSearchAfterImport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	records := []*types.Record{
		{ID: "SP-1", Name: "藍牙喇叭", Category: "音頻設備", Features: []string{"防水", "長續航"}, Description: "戶外用的藍牙喇叭"},
		{ID: "CH-1", Name: "人體工學椅", Category: "家具", Features: []string{"腰靠"}},
		{ID: "PJ-1", Name: "投影機", Category: "家庭娛樂", Features: []string{"4K"}},
	}
	stats, err := svc.Indexer.IndexCatalog(ctx, records, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.RecordsIndexed)

	// the import refreshed the lexical corpus through the service
	require.NotNil(t, svc.Searcher.Index())
	assert.Equal(t, 9, svc.Searcher.Index().Len())

	resp, err := svc.Searcher.Search(ctx, "藍牙喇叭", svc.Params())
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "SP-1", resp.Results[0].RecordID)
	assert.Contains(t, resp.Categories, "audio")
	assert.False(t, resp.Degraded)
}

func TestServiceEmptyCatalog(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Searcher.Search(context.Background(), "喇叭", svc.Params())
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Nil(t, svc.PGVector)
}

func TestServiceRejectsUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "word2vec"

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = New(context.Background(), cfg, store, zerolog.Nop())
	assert.ErrorIs(t, err, embedder.ErrUnsupportedModel)
}
