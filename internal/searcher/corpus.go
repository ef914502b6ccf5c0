package searcher

import (
	"context"
	"fmt"

	"github.com/dshills/productrank-mcp/internal/category"
	"github.com/dshills/productrank-mcp/internal/lexical"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// Catalog is the read side of the record store
type Catalog interface {
	RecordByID(ctx context.Context, id string) (*types.Record, error)
	ListRecords(ctx context.Context) ([]*types.Record, error)
	ListChunks(ctx context.Context) ([]*types.Chunk, error)
}

// BuildIndex loads every chunk of every record into one lexical corpus.
// Record categories are canonicalized through the table; chunks whose
// record is missing are skipped.
func BuildIndex(ctx context.Context, catalog Catalog, table *category.Table, opts lexical.Options) (*lexical.Index, error) {
	records, err := catalog.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	chunks, err := catalog.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	byID := make(map[string]*types.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	docs := make([]lexical.Document, 0, len(chunks))
	for _, c := range chunks {
		rec, ok := byID[c.RecordID]
		if !ok {
			continue
		}
		docs = append(docs, documentFor(table, rec, c.ChunkType, c.Content))
	}
	return lexical.Build(docs, opts)
}

func documentFor(table *category.Table, rec *types.Record, ct types.ChunkType, text string) lexical.Document {
	return lexical.Document{
		Ref:      types.ChunkRef{RecordID: rec.ID, Type: ct},
		Name:     rec.Name,
		Category: table.Canonical(rec.Category),
		Text:     text,
	}
}
