package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/productrank-mcp/internal/chunker"
	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/storage"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// ErrIndexInProgress is returned when an import is already running
var ErrIndexInProgress = errors.New("indexing already in progress")

// Refresher rebuilds derived state after an import, e.g. the lexical corpus
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Indexer runs the import pipeline: chunk -> store -> embed -> refresh
type Indexer struct {
	chunker  *chunker.Chunker
	storage  storage.Storage
	embedder embedder.Embedder
	refresh  Refresher
	logger   zerolog.Logger
	lock     IndexLock
}

// Option configures an Indexer
type Option func(*Indexer)

// WithEmbedder enables embedding of new and changed chunks
func WithEmbedder(e embedder.Embedder) Option {
	return func(idx *Indexer) { idx.embedder = e }
}

// WithChunker replaces the default chunker
func WithChunker(c *chunker.Chunker) Option {
	return func(idx *Indexer) { idx.chunker = c }
}

// WithRefresher is called after every successful import
func WithRefresher(r Refresher) Option {
	return func(idx *Indexer) { idx.refresh = r }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// Config contains configuration for one import
type Config struct {
	Workers        int    // concurrent chunking and embedding workers (default: runtime.NumCPU())
	BatchSize      int    // records per transaction (default: 20)
	EmbedBatchSize int    // texts per embedding request (default: 32)
	Prune          bool   // delete stored records that are absent from the catalog
	Source         string // recorded in the import history
}

// Statistics summarizes one import
type Statistics struct {
	RecordsIndexed    int
	RecordsSkipped    int // unchanged since the last import
	RecordsDeleted    int
	Duplicates        int // later entries reusing an earlier id
	ChunksCreated     int
	EmbeddingsCreated int
	Duration          time.Duration
	ErrorMessages     []string
}

// New creates an Indexer over store
func New(store storage.Storage, opts ...Option) *Indexer {
	idx := &Indexer{
		chunker: chunker.New(),
		storage: store,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 20
	}
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = 32
	}
	if out.EmbedBatchSize > embedder.MaxBatchSize {
		out.EmbedBatchSize = embedder.MaxBatchSize
	}
	return out
}

// IndexFile loads a catalog file and imports it
func (idx *Indexer) IndexFile(ctx context.Context, path string, config *Config) (*Statistics, error) {
	records, err := LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	cfg := config.withDefaults()
	if cfg.Source == "" {
		cfg.Source = path
	}
	return idx.IndexCatalog(ctx, records, &cfg)
}

// IndexCatalog imports records. Records whose content hash is unchanged are
// skipped; changed records get fresh chunks and lose their old embeddings.
// Only one import runs at a time.
func (idx *Indexer) IndexCatalog(ctx context.Context, records []*types.Record, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	cfg := config.withDefaults()
	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}
	log := idx.logger.With().Str("source", cfg.Source).Int("records", len(records)).Logger()
	log.Info().Msg("catalog import started")

	records = idx.dedupe(records, stats, log)

	changed, err := idx.changedRecords(ctx, records, stats)
	if err != nil {
		return nil, err
	}

	chunked, err := idx.chunkRecords(ctx, changed, cfg.Workers, stats)
	if err != nil {
		return nil, err
	}

	if err := idx.writeRecords(ctx, chunked, cfg.BatchSize, stats); err != nil {
		return nil, err
	}

	if cfg.Prune {
		if err := idx.prune(ctx, records, stats); err != nil {
			return nil, err
		}
	}

	if idx.embedder != nil {
		if err := idx.embedMissing(ctx, cfg, stats); err != nil {
			return nil, err
		}
	}

	stats.Duration = time.Since(start)
	if err := idx.storage.RecordImport(ctx, &storage.CatalogImport{
		Source:     cfg.Source,
		Records:    stats.RecordsIndexed,
		Skipped:    stats.RecordsSkipped,
		Chunks:     stats.ChunksCreated,
		Embeddings: stats.EmbeddingsCreated,
		Duration:   stats.Duration,
	}); err != nil {
		return nil, err
	}

	if idx.refresh != nil {
		if err := idx.refresh.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to refresh after import: %w", err)
		}
	}

	log.Info().
		Int("indexed", stats.RecordsIndexed).
		Int("skipped", stats.RecordsSkipped).
		Int("deleted", stats.RecordsDeleted).
		Int("chunks", stats.ChunksCreated).
		Int("embeddings", stats.EmbeddingsCreated).
		Int("errors", len(stats.ErrorMessages)).
		Dur("duration", stats.Duration).
		Msg("catalog import finished")
	return stats, nil
}

// dedupe keeps the first record for every id
func (idx *Indexer) dedupe(records []*types.Record, stats *Statistics, log zerolog.Logger) []*types.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]*types.Record, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			stats.Duplicates++
			log.Warn().Str("record_id", r.ID).Msg("duplicate record id ignored")
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// changedRecords drops invalid and unchanged records
func (idx *Indexer) changedRecords(ctx context.Context, records []*types.Record, stats *Statistics) ([]*types.Record, error) {
	out := make([]*types.Record, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.ID, err))
			continue
		}
		stored, err := idx.storage.RecordHash(ctx, r.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("failed to read hash of %s: %w", r.ID, err)
		case stored == r.ContentHash():
			stats.RecordsSkipped++
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type chunkedRecord struct {
	record *types.Record
	chunks []*types.Chunk
}

// chunkRecords runs the chunker on a bounded number of goroutines
func (idx *Indexer) chunkRecords(ctx context.Context, records []*types.Record, workers int, stats *Statistics) ([]chunkedRecord, error) {
	out := make([]chunkedRecord, len(records))
	errs := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, r := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks, err := idx.chunker.ChunkRecord(r)
			out[i] = chunkedRecord{record: r, chunks: chunks}
			errs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := out[:0]
	for i, cr := range out {
		if errs[i] != nil {
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", cr.record.ID, errs[i]))
			continue
		}
		kept = append(kept, cr)
	}
	return kept, nil
}

// writeRecords stores records and their chunks, one transaction per batch
func (idx *Indexer) writeRecords(ctx context.Context, items []chunkedRecord, batchSize int, stats *Statistics) error {
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		if err := idx.writeBatch(ctx, items[i:end], stats); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Indexer) writeBatch(ctx context.Context, batch []chunkedRecord, stats *Statistics) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chunks := 0
	for _, item := range batch {
		if err := tx.UpsertRecord(ctx, item.record); err != nil {
			return err
		}
		// old embeddings go with the old chunks
		if err := tx.DeleteChunksByRecord(ctx, item.record.ID); err != nil {
			return fmt.Errorf("failed to delete old chunks of %s: %w", item.record.ID, err)
		}
		for _, c := range item.chunks {
			if err := tx.UpsertChunk(ctx, c); err != nil {
				return err
			}
		}
		chunks += len(item.chunks)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	stats.RecordsIndexed += len(batch)
	stats.ChunksCreated += chunks
	return nil
}

// prune deletes stored records missing from the imported catalog
func (idx *Indexer) prune(ctx context.Context, records []*types.Record, stats *Statistics) error {
	keep := make(map[string]struct{}, len(records))
	for _, r := range records {
		keep[r.ID] = struct{}{}
	}
	stored, err := idx.storage.ListRecords(ctx)
	if err != nil {
		return err
	}
	for _, r := range stored {
		if _, ok := keep[r.ID]; ok {
			continue
		}
		if err := idx.storage.DeleteRecord(ctx, r.ID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", r.ID, err)
		}
		stats.RecordsDeleted++
	}
	return nil
}

// embedMissing embeds every chunk that lacks an embedding from the current
// provider and model. Requests run concurrently; writes happen in one
// transaction afterwards.
func (idx *Indexer) embedMissing(ctx context.Context, cfg Config, stats *Statistics) error {
	provider, model := idx.embedder.Provider(), idx.embedder.Model()
	chunks, err := idx.storage.ListChunksMissingEmbeddings(ctx, provider, model)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	batches := make([][]*types.Chunk, 0, len(chunks)/cfg.EmbedBatchSize+1)
	for i := 0; i < len(chunks); i += cfg.EmbedBatchSize {
		batches = append(batches, chunks[i:min(i+cfg.EmbedBatchSize, len(chunks))])
	}
	results := make([]*embedder.BatchEmbeddingResponse, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, batch := range batches {
		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, c := range batch {
				texts[j] = c.Content
			}
			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("embedding batch %d: %w", i, err)
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	written := 0
	for i, batch := range batches {
		for j, c := range batch {
			emb := results[i].Embeddings[j]
			if err := tx.UpsertEmbedding(ctx, &storage.Embedding{
				ChunkID:   c.ID,
				Vector:    storage.SerializeVector(emb.Vector),
				Dimension: len(emb.Vector),
				Provider:  provider,
				Model:     model,
			}); err != nil {
				return err
			}
			written++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit embeddings: %w", err)
	}
	stats.EmbeddingsCreated += written
	return nil
}

// Busy reports whether an import is running
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}
