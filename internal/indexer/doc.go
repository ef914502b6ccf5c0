// Package indexer imports product catalogs into the catalog store.
//
// An import runs in stages:
//  1. Load: a JSON array of products. Missing ids are derived from the name.
//  2. Diff: records whose content hash matches the stored one are skipped.
//  3. Chunk: each changed record becomes features, usecases and specs chunks.
//  4. Store: records and chunks are written in batched transactions. A
//     changed record's old chunks and their embeddings are removed first.
//  5. Embed: chunks without an embedding from the configured provider and
//     model are embedded concurrently and written in one transaction.
//  6. Refresh: an optional Refresher, normally the searcher, rebuilds its
//     lexical corpus.
//
// # Basic Usage
//
//	idx := indexer.New(store,
//	    indexer.WithEmbedder(emb),
//	    indexer.WithRefresher(s),
//	    indexer.WithLogger(logger),
//	)
//	stats, err := idx.IndexFile(ctx, "merged_products.json", nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("indexed %d, skipped %d\n", stats.RecordsIndexed, stats.RecordsSkipped)
//
// Only one import runs at a time; a concurrent call returns ErrIndexInProgress.
package indexer
