// Package lexical implements Okapi BM25 over product chunks.
//
// An Index is built once from the full corpus and never modified; refreshing
// the catalog means building a new Index. Scoring a query touches only the
// posting lists of its terms and can be sharded over an ants pool:
//
//	pool, _ := lexical.NewPool(0)
//	defer pool.Release()
//	opts := lexical.DefaultOptions()
//	opts.Pool = pool
//	ix, err := lexical.Build(docs, opts)
//	hits, err := ix.Score(ctx, "waterproof speaker")
package lexical
