package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/productrank-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens the database at dbPath and applies migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

func (t *sqliteTx) UpsertRecord(ctx context.Context, record *types.Record) error {
	return upsertRecord(ctx, t.tx, record)
}

func (t *sqliteTx) DeleteRecord(ctx context.Context, id string) error {
	return deleteRecord(ctx, t.tx, id)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return upsertChunk(ctx, t.tx, chunk)
}

func (t *sqliteTx) DeleteChunksByRecord(ctx context.Context, recordID string) error {
	return deleteChunksByRecord(ctx, t.tx, recordID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbedding(ctx, t.tx, embedding)
}

func (t *sqliteTx) RecordImport(ctx context.Context, imp *CatalogImport) error {
	return recordImport(ctx, t.tx, imp)
}

// Record operations

func upsertRecord(ctx context.Context, q querier, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	features := record.Features
	if features == nil {
		features = []string{}
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	hash := record.ContentHash()

	query := `
		INSERT INTO records (id, name, description, category, features, price, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			features = excluded.features,
			price = excluded.price,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err = q.ExecContext(ctx, query,
		record.ID, record.Name, record.Description, record.Category,
		string(featuresJSON), record.Price, hash[:], now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", record.ID, err)
	}
	return nil
}

// UpsertRecord inserts or replaces a record
func (s *SQLiteStorage) UpsertRecord(ctx context.Context, record *types.Record) error {
	return upsertRecord(ctx, s.db, record)
}

func deleteRecord(ctx context.Context, q querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return err
}

// DeleteRecord removes a record with its chunks and embeddings
func (s *SQLiteStorage) DeleteRecord(ctx context.Context, id string) error {
	return deleteRecord(ctx, s.db, id)
}

// RecordByID looks up one record
func (s *SQLiteStorage) RecordByID(ctx context.Context, id string) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, features, price
		FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// RecordHash returns the stored content hash of a record
func (s *SQLiteStorage) RecordHash(ctx context.Context, id string) ([32]byte, error) {
	var hash [32]byte
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT content_hash FROM records WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return hash, ErrNotFound
	}
	if err != nil {
		return hash, err
	}
	copy(hash[:], raw)
	return hash, nil
}

// ListRecords returns every record ordered by id
func (s *SQLiteStorage) ListRecords(ctx context.Context) ([]*types.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, features, price
		FROM records ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]*types.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*types.Record, error) {
	var rec types.Record
	var features string
	if err := sc.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Category, &features, &rec.Price); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
		return nil, fmt.Errorf("record %s has malformed features: %w", rec.ID, err)
	}
	return &rec, nil
}

// Chunk operations

func upsertChunk(ctx context.Context, q querier, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO chunks (record_id, chunk_type, content, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id, chunk_type)
		DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.RecordID, string(chunk.ChunkType), chunk.Content, chunk.ContentHash[:], now, now,
	).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", chunk.Ref(), err)
	}
	return nil
}

// UpsertChunk inserts or replaces the chunk of a record with the same type
func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return upsertChunk(ctx, s.db, chunk)
}

const chunkColumns = `id, record_id, chunk_type, content, content_hash`

func scanChunk(sc scanner) (*types.Chunk, error) {
	var c types.Chunk
	var ct string
	var hash []byte
	if err := sc.Scan(&c.ID, &c.RecordID, &ct, &c.Content, &hash); err != nil {
		return nil, err
	}
	c.ChunkType = types.ChunkType(ct)
	copy(c.ContentHash[:], hash)
	return &c, nil
}

func listChunks(ctx context.Context, q querier, query string, args ...any) ([]*types.Chunk, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunk looks up a chunk by row id
func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, chunkID)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// ListChunks returns every chunk in insertion order
func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]*types.Chunk, error) {
	return listChunks(ctx, s.db, `SELECT `+chunkColumns+` FROM chunks ORDER BY id`)
}

// ListChunksByRecord returns the chunks of one record
func (s *SQLiteStorage) ListChunksByRecord(ctx context.Context, recordID string) ([]*types.Chunk, error) {
	return listChunks(ctx, s.db, `SELECT `+chunkColumns+` FROM chunks WHERE record_id = ? ORDER BY id`, recordID)
}

// ListChunksMissingEmbeddings returns chunks with no embedding from the given provider and model
func (s *SQLiteStorage) ListChunksMissingEmbeddings(ctx context.Context, provider, model string) ([]*types.Chunk, error) {
	return listChunks(ctx, s.db, `
		SELECT c.id, c.record_id, c.chunk_type, c.content, c.content_hash
		FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id AND e.provider = ? AND e.model = ?
		WHERE e.id IS NULL
		ORDER BY c.id`, provider, model)
}

func deleteChunksByRecord(ctx context.Context, q querier, recordID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE record_id = ?`, recordID)
	return err
}

// DeleteChunksByRecord removes every chunk of a record
func (s *SQLiteStorage) DeleteChunksByRecord(ctx context.Context, recordID string) error {
	return deleteChunksByRecord(ctx, s.db, recordID)
}

// Embedding operations

func upsertEmbedding(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

// UpsertEmbedding stores the embedding for a chunk, replacing any previous one
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbedding(ctx, s.db, embedding)
}

// GetEmbedding returns the embedding of a chunk
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var e Embedding
	err := s.db.QueryRowContext(ctx, query, chunkID).Scan(
		&e.ID, &e.ChunkID, &e.Vector, &e.Dimension, &e.Provider, &e.Model, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmbeddings returns every embedding for provider and model with its chunk reference
func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, provider, model string) ([]*ChunkEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.record_id, c.chunk_type, e.vector
		FROM embeddings e
		INNER JOIN chunks c ON c.id = e.chunk_id
		WHERE e.provider = ? AND e.model = ?
		ORDER BY c.id`, provider, model)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]*ChunkEmbedding, 0)
	for rows.Next() {
		var ce ChunkEmbedding
		var ct string
		var blob []byte
		if err := rows.Scan(&ce.ChunkID, &ce.Ref.RecordID, &ct, &blob); err != nil {
			return nil, err
		}
		ce.Ref.Type = types.ChunkType(ct)
		if ce.Vector, err = DeserializeVector(blob); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", ce.ChunkID, err)
		}
		out = append(out, &ce)
	}
	return out, rows.Err()
}

// SearchVector returns the chunks closest to vector by cosine similarity
func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.db, vector, limit, filters)
}

// Import and status operations

func recordImport(ctx context.Context, q querier, imp *CatalogImport) error {
	if imp.CompletedAt.IsZero() {
		imp.CompletedAt = time.Now()
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO catalog_imports (source, records, skipped, chunks, embeddings, duration_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		imp.Source, imp.Records, imp.Skipped, imp.Chunks, imp.Embeddings,
		imp.Duration.Milliseconds(), imp.CompletedAt,
	).Scan(&imp.ID)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}

// RecordImport stores a summary of an import run
func (s *SQLiteStorage) RecordImport(ctx context.Context, imp *CatalogImport) error {
	return recordImport(ctx, s.db, imp)
}

// GetStatus counts what is stored
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*CatalogStatus, error) {
	status := &CatalogStatus{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM records", &status.RecordsCount},
		{"SELECT COUNT(*) FROM chunks", &status.ChunksCount},
		{"SELECT COUNT(*) FROM embeddings", &status.EmbeddingsCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	var imp CatalogImport
	var durationMS int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id, source, records, skipped, chunks, embeddings, duration_ms, completed_at
		FROM catalog_imports ORDER BY id DESC LIMIT 1`).Scan(
		&imp.ID, &imp.Source, &imp.Records, &imp.Skipped, &imp.Chunks, &imp.Embeddings,
		&durationMS, &imp.CompletedAt)
	switch {
	case err == nil:
		imp.Duration = time.Duration(durationMS) * time.Millisecond
		status.LastImport = &imp
	case err != sql.ErrNoRows:
		return nil, err
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		EmbeddingsComplete:  status.ChunksCount > 0 && status.EmbeddingsCount >= status.ChunksCount,
	}
	return status, nil
}
