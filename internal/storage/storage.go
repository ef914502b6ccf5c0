package storage

import (
	"context"
	"time"

	"github.com/dshills/productrank-mcp/pkg/types"
)

// Reader is the read side of the catalog store
type Reader interface {
	RecordByID(ctx context.Context, id string) (*types.Record, error)
	RecordHash(ctx context.Context, id string) ([32]byte, error)
	ListRecords(ctx context.Context) ([]*types.Record, error)

	GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error)
	ListChunks(ctx context.Context) ([]*types.Chunk, error)
	ListChunksByRecord(ctx context.Context, recordID string) ([]*types.Chunk, error)
	ListChunksMissingEmbeddings(ctx context.Context, provider, model string) ([]*types.Chunk, error)

	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)
	ListEmbeddings(ctx context.Context, provider, model string) ([]*ChunkEmbedding, error)

	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)

	GetStatus(ctx context.Context) (*CatalogStatus, error)
}

// Writer is the write side of the catalog store. Transactions implement it.
type Writer interface {
	UpsertRecord(ctx context.Context, record *types.Record) error
	DeleteRecord(ctx context.Context, id string) error

	UpsertChunk(ctx context.Context, chunk *types.Chunk) error
	DeleteChunksByRecord(ctx context.Context, recordID string) error

	UpsertEmbedding(ctx context.Context, embedding *Embedding) error

	RecordImport(ctx context.Context, imp *CatalogImport) error
}

// Storage is the full catalog store
type Storage interface {
	Reader
	Writer

	// Transaction support
	BeginTx(ctx context.Context) (Tx, error)

	// Lifecycle
	Close() error
}

// Tx is a write transaction
type Tx interface {
	Writer
	Commit() error
	Rollback() error
}

// Embedding is a stored chunk vector
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // little-endian float32
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// ChunkEmbedding is an embedding joined with the chunk it belongs to
type ChunkEmbedding struct {
	ChunkID int64
	Ref     types.ChunkRef
	Vector  []float32
}

// CatalogImport records one catalog import run
type CatalogImport struct {
	ID          int64
	Source      string
	Records     int
	Skipped     int
	Chunks      int
	Embeddings  int
	Duration    time.Duration
	CompletedAt time.Time
}

// SearchFilters narrows vector search
type SearchFilters struct {
	ChunkTypes []types.ChunkType
	Provider   string
	Model      string
	MinScore   float64
}

// VectorResult is one nearest-neighbour match
type VectorResult struct {
	ChunkID    int64
	Ref        types.ChunkRef
	Similarity float64 // cosine, in [-1, 1]
}

// CatalogStatus summarizes what is stored
type CatalogStatus struct {
	RecordsCount    int
	ChunksCount     int
	EmbeddingsCount int
	SizeMB          float64
	SchemaVersion   string
	LastImport      *CatalogImport
	Health          HealthStatus
}

// HealthStatus reports whether the store is usable for search
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	EmbeddingsComplete  bool // every chunk has an embedding
}
