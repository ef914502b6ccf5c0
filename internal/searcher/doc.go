// Package searcher implements hybrid product ranking combining BM25 keyword
// scores, vector similarity and an inferred category weight.
//
// # Basic Usage
//
//	s, err := searcher.New(category.Default(), vectorSource,
//	    searcher.WithCatalog(store),
//	    searcher.WithLogger(logger))
//	if err := s.Refresh(ctx); err != nil { ... }
//
//	resp, err := s.Search(ctx, "waterproof speaker", searcher.DefaultParams())
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s %.3f (lex %.2f vec %.2f x%.1f)\n",
//	        r.Rank, r.Name, r.Score,
//	        r.Breakdown.LexicalNorm, r.Breakdown.VectorNorm, r.Breakdown.CategoryWeight)
//	}
//
// # Pipeline
//
// A query runs in five steps:
//
//  1. Parameters are validated. Out-of-range values return ErrInvalidConfig
//     and nothing else runs.
//  2. The lexical snapshot is scored while the vector source is queried
//     for Limit*CandidateMultiplier neighbours under VectorTimeout. If the
//     vector call fails or times out the response is marked Degraded and
//     ranking uses lexical scores alone.
//  3. Hits are merged per chunk and every candidate gets a category weight
//     from the categories inferred from the query.
//  4. Scores are fused:
//
//     final = (LexicalWeight*lexical_norm + VectorWeight*vector_norm) * weight
//
//     and candidates below ScoreThreshold are dropped.
//  5. Chunks are collapsed to one result per record and cut to Limit.
//
// # Concurrency
//
// A Searcher is safe for concurrent use. The category table is read-only
// and the lexical snapshot is replaced atomically by Refresh or SetIndex.
// There is no result cache: equal inputs produce equal outputs because
// nothing is shared between queries.
//
// # Tuning
//
// Tune evaluates several Params presets against labelled queries in
// parallel and picks the one with the best mean reciprocal rank.
package searcher
