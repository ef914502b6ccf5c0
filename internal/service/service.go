// Package service assembles the catalog store, embedder, vector source,
// searcher and indexer from a Config. The MCP server, the HTTP API and the
// CLI all run on one Service.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/productrank-mcp/internal/config"
	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/indexer"
	"github.com/dshills/productrank-mcp/internal/searcher"
	"github.com/dshills/productrank-mcp/internal/storage"
	"github.com/dshills/productrank-mcp/internal/vectorsource"
)

// Service holds the shared components
type Service struct {
	Config   *config.Config
	Storage  storage.Storage
	Embedder embedder.Embedder
	Vectors  searcher.VectorSource
	PGVector *vectorsource.PGVector // nil unless pgvector is enabled
	Searcher *searcher.Searcher
	Indexer  *indexer.Indexer

	pool   *ants.Pool
	logger zerolog.Logger
}

// Open builds a Service and loads the lexical corpus from the catalog
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	dbFile, err := cfg.Database.DBFile()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	svc, err := New(ctx, cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// New builds a Service over an open store. On success the Service owns
// store and closes it in Close; on error the caller still owns it.
func New(ctx context.Context, cfg *config.Config, store storage.Storage, logger zerolog.Logger) (*Service, error) {
	svc := &Service{Config: cfg, Storage: store, logger: logger}

	emb, err := embedder.New(cfg.Embedding.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	svc.Embedder = emb

	table, err := cfg.Categories.Table()
	if err != nil {
		return nil, fmt.Errorf("failed to load category table: %w", err)
	}
	chunks, err := cfg.Categories.Chunker()
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk profile: %w", err)
	}
	lexOpts, err := cfg.Lexical.Options()
	if err != nil {
		return nil, err
	}
	svc.pool = lexOpts.Pool

	if cfg.PGVector.Enabled {
		pg, err := vectorsource.OpenPGVector(ctx, cfg.PGVector.DSN, emb)
		if err != nil {
			svc.releasePool()
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			svc.releasePool()
			return nil, err
		}
		svc.PGVector = pg
		svc.Vectors = pg
	} else {
		svc.Vectors = vectorsource.NewStore(emb, store)
	}

	srch, err := searcher.New(table, svc.Vectors,
		searcher.WithCatalog(store),
		searcher.WithLexicalOptions(lexOpts),
		searcher.WithLogger(logger),
	)
	if err != nil {
		svc.closeVectors()
		return nil, err
	}
	svc.Searcher = srch

	svc.Indexer = indexer.New(store,
		indexer.WithEmbedder(emb),
		indexer.WithChunker(chunks),
		indexer.WithRefresher(svc),
		indexer.WithLogger(logger),
	)

	if err := srch.Refresh(ctx); err != nil {
		svc.closeVectors()
		return nil, err
	}

	logger.Info().
		Str("build_mode", storage.BuildMode).
		Str("embedding_provider", emb.Provider()).
		Str("embedding_model", emb.Model()).
		Bool("pgvector", svc.PGVector != nil).
		Msg("service ready")
	return svc, nil
}

// Refresh runs after every import: it copies embeddings to Postgres when
// pgvector is enabled, then rebuilds the lexical corpus
func (s *Service) Refresh(ctx context.Context) error {
	if s.PGVector != nil {
		n, err := s.PGVector.Sync(ctx, s.Storage)
		if err != nil {
			return fmt.Errorf("failed to sync pgvector: %w", err)
		}
		s.logger.Info().Int("vectors", n).Msg("pgvector synced")
	}
	return s.Searcher.Refresh(ctx)
}

// Params returns the configured default search parameters
func (s *Service) Params() searcher.Params {
	return s.Config.Search.Params()
}

// Close releases everything the Service opened
func (s *Service) Close() error {
	err := s.closeVectors()
	return errors.Join(err, s.Storage.Close())
}

func (s *Service) closeVectors() error {
	s.releasePool()
	if s.PGVector != nil {
		return s.PGVector.Close()
	}
	return nil
}

func (s *Service) releasePool() {
	if s.pool != nil {
		s.pool.Release()
		s.pool = nil
	}
}
