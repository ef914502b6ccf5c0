package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/storage"
	"github.com/dshills/productrank-mcp/pkg/types"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func catalog() []*types.Record {
	return []*types.Record{
		{ID: "SP-1", Name: "藍牙喇叭", Category: "音頻設備", Features: []string{"防水"}},
		{ID: "CH-1", Name: "人體工學椅", Category: "家具", Features: []string{"腰靠"}},
		{ID: "PJ-1", Name: "投影機", Category: "家庭娛樂"},
	}
}

type countingRefresher struct{ n atomic.Int32 }

func (r *countingRefresher) Refresh(context.Context) error {
	r.n.Add(1)
	return nil
}

func TestIndexCatalog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb, err := embedder.NewLocalProvider(32, nil)
	require.NoError(t, err)
	ref := &countingRefresher{}

	idx := New(s, WithEmbedder(emb), WithRefresher(ref))
	stats, err := idx.IndexCatalog(ctx, catalog(), &Config{Workers: 2, BatchSize: 2, EmbedBatchSize: 4, Source: "test"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.RecordsIndexed)
	assert.Equal(t, 9, stats.ChunksCreated)
	assert.Equal(t, 9, stats.EmbeddingsCreated)
	assert.Empty(t, stats.ErrorMessages)
	assert.Equal(t, int32(1), ref.n.Load())

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.RecordsCount)
	assert.True(t, status.Health.EmbeddingsComplete)
	require.NotNil(t, status.LastImport)
	assert.Equal(t, "test", status.LastImport.Source)
}

func TestIndexCatalogSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	idx := New(s)

	_, err := idx.IndexCatalog(ctx, catalog(), nil)
	require.NoError(t, err)

	changed := catalog()
	changed[1].Features = []string{"腰靠", "頭枕"}
	stats, err := idx.IndexCatalog(ctx, changed, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsIndexed)
	assert.Equal(t, 2, stats.RecordsSkipped)

	chunks, err := s.ListChunksByRecord(ctx, "CH-1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0].Content, "頭枕")
}

func TestIndexCatalogReembedsChangedRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb, _ := embedder.NewLocalProvider(16, nil)
	idx := New(s, WithEmbedder(emb))

	_, err := idx.IndexCatalog(ctx, catalog(), nil)
	require.NoError(t, err)

	changed := catalog()
	changed[0].Description = "戶外派對"
	stats, err := idx.IndexCatalog(ctx, changed, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.EmbeddingsCreated, "only the changed record's chunks")

	missing, err := s.ListChunksMissingEmbeddings(ctx, emb.Provider(), emb.Model())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestIndexCatalogDuplicatesAndInvalid(t *testing.T) {
	s := newStore(t)
	records := append(catalog(),
		&types.Record{ID: "SP-1", Name: "second speaker"},
		&types.Record{ID: "NONAME"},
	)
	stats, err := New(s).IndexCatalog(context.Background(), records, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, stats.RecordsIndexed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "NONAME")

	rec, err := s.RecordByID(context.Background(), "SP-1")
	require.NoError(t, err)
	assert.Equal(t, "藍牙喇叭", rec.Name, "first entry wins")
}

func TestIndexCatalogPrune(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	idx := New(s)

	_, err := idx.IndexCatalog(ctx, catalog(), nil)
	require.NoError(t, err)

	stats, err := idx.IndexCatalog(ctx, catalog()[:1], &Config{Prune: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordsDeleted)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestIndexCatalogEmbedFailure(t *testing.T) {
	s := newStore(t)
	idx := New(s, WithEmbedder(failingEmbedder{}))
	_, err := idx.IndexCatalog(context.Background(), catalog(), nil)
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)
	assert.False(t, idx.Busy(), "lock released on error")
}

func TestIndexCatalogRejectsConcurrentRun(t *testing.T) {
	idx := New(newStore(t))
	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.IndexCatalog(context.Background(), catalog(), nil)
	assert.ErrorIs(t, err, ErrIndexInProgress)
	assert.True(t, idx.Busy())
}

func TestIndexFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "Keyboard K-007"}, {"name": "Mouse G-555"}]`), 0o644))

	s := newStore(t)
	stats, err := New(s).IndexFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordsIndexed)

	_, err = s.RecordByID(context.Background(), "K-007")
	assert.NoError(t, err)

	status, err := s.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, status.LastImport.Source)
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}

type failingEmbedder struct{}

func (failingEmbedder) GenerateEmbedding(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return nil, errors.New("unused")
}

func (failingEmbedder) GenerateBatch(context.Context, embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, embedder.ErrProviderFailed
}

func (failingEmbedder) Dimension() int   { return 4 }
func (failingEmbedder) Provider() string { return "failing" }
func (failingEmbedder) Model() string    { return "none" }
func (failingEmbedder) Close() error     { return nil }
