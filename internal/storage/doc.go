// Package storage provides SQLite persistence for the product catalog.
//
// The store holds:
//   - records: one row per product, with a SHA-256 content hash for incremental imports
//   - chunks: the features, usecases and specs texts derived from each record
//   - embeddings: one little-endian float32 vector per chunk, tagged with provider and model
//   - catalog_imports: a summary of every import run
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("catalog.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertRecord(ctx, rec); err != nil {
//	    return err
//	}
//	for _, c := range chunks {
//	    if err := tx.UpsertChunk(ctx, c); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// # Vector Search
//
// SearchVector computes cosine similarity in Go over every stored embedding
// with the query's dimension, then returns the top matches. Ties keep chunk
// insertion order.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler.
// Building with -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
package storage
