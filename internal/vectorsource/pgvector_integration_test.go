//go:build integration

package vectorsource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/storage"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase("productrank_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPGVectorSyncAndNearest(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer s.Close()

	emb, err := embedder.NewLocalProvider(64, nil)
	require.NoError(t, err)
	seed(t, s, emb, map[string]string{
		"SP-1": "portable bluetooth speaker waterproof",
		"CH-1": "ergonomic office chair lumbar support",
		"PJ-1": "4k home cinema projector",
	})

	pg, err := OpenPGVector(ctx, dsn, emb)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.EnsureSchema(ctx))

	n, err := pg.Sync(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// a second sync replaces rather than duplicates
	n, err = pg.Sync(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := pg.Nearest(ctx, "bluetooth speaker", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "SP-1", hits[0].Ref.RecordID)
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity)

	local := NewStore(emb, s)
	want, err := local.Nearest(ctx, "bluetooth speaker", 2)
	require.NoError(t, err)
	assert.Equal(t, want[0].Ref, hits[0].Ref)
	assert.InDelta(t, want[0].Similarity, hits[0].Similarity, 1e-4)
}
