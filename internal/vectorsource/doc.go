// Package vectorsource provides nearest-neighbour backends for the searcher.
//
// Store embeds the query and scans the SQLite embeddings table. PGVector
// keeps a copy of the same embeddings in Postgres and lets pgvector order
// them by cosine distance. Both report similarity in [0, 1].
package vectorsource
