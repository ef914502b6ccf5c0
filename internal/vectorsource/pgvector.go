package vectorsource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/storage"
	"github.com/dshills/productrank-mcp/pkg/types"
)

const pgSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunk_vectors (
    record_id  TEXT NOT NULL,
    chunk_type TEXT NOT NULL,
    provider   TEXT NOT NULL,
    model      TEXT NOT NULL,
    embedding  vector NOT NULL,
    PRIMARY KEY (provider, model, record_id, chunk_type)
);
`

// PGVector answers nearest-neighbour queries from Postgres with pgvector
type PGVector struct {
	db    *sql.DB
	emb   embedder.Embedder
	types []types.ChunkType
}

// OpenPGVector connects to dsn with lib/pq and checks the connection
func OpenPGVector(ctx context.Context, dsn string, emb embedder.Embedder) (*PGVector, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPGVector(db, emb), nil
}

// NewPGVector wraps an open database
func NewPGVector(db *sql.DB, emb embedder.Embedder, chunkTypes ...types.ChunkType) *PGVector {
	return &PGVector{db: db, emb: emb, types: chunkTypes}
}

// EnsureSchema creates the vector extension and table
func (p *PGVector) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, pgSchema); err != nil {
		return fmt.Errorf("create pgvector schema: %w", err)
	}
	return nil
}

// Sync replaces the Postgres copy of the embeddings for the embedder's
// provider and model with what reader holds. It returns the number of rows written.
func (p *PGVector) Sync(ctx context.Context, reader storage.Reader) (int, error) {
	provider, model := p.emb.Provider(), p.emb.Model()
	rows, err := reader.ListEmbeddings(ctx, provider, model)
	if err != nil {
		return 0, fmt.Errorf("list embeddings: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_vectors WHERE provider = $1 AND model = $2`, provider, model); err != nil {
		return 0, fmt.Errorf("clear chunk_vectors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("chunk_vectors",
		"record_id", "chunk_type", "provider", "model", "embedding"))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}
	for _, ce := range rows {
		if _, err := stmt.ExecContext(ctx,
			ce.Ref.RecordID, string(ce.Ref.Type), provider, model, pgvector.NewVector(ce.Vector)); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("copy %s: %w", ce.Ref, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Nearest embeds query and returns up to count hits ordered by cosine distance
func (p *PGVector) Nearest(ctx context.Context, query string, count int) ([]types.VectorHit, error) {
	if count <= 0 {
		return []types.VectorHit{}, nil
	}

	qe, err := p.emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunkTypes := make([]string, len(p.types))
	for i, ct := range p.types {
		chunkTypes[i] = string(ct)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT record_id, chunk_type, 1 - (embedding <=> $1) AS similarity
		FROM chunk_vectors
		WHERE provider = $2 AND model = $3
		  AND vector_dims(embedding) = $4
		  AND (cardinality($5::text[]) = 0 OR chunk_type = ANY($5))
		ORDER BY embedding <=> $1, record_id, chunk_type
		LIMIT $6`,
		pgvector.NewVector(qe.Vector), p.emb.Provider(), p.emb.Model(),
		len(qe.Vector), pq.Array(chunkTypes), count)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]types.VectorHit, 0, count)
	for rows.Next() {
		var h types.VectorHit
		var ct string
		if err := rows.Scan(&h.Ref.RecordID, &ct, &h.Similarity); err != nil {
			return nil, err
		}
		h.Ref.Type = types.ChunkType(ct)
		h.Similarity = clampCosine(h.Similarity)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Close closes the database
func (p *PGVector) Close() error {
	return p.db.Close()
}
