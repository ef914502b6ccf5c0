// Package types provides shared type definitions for the product ranking server.
//
// Records are catalog products. Each record is split into up to three chunks
// (features, usecases, specs) and chunks are what the lexical index and the
// vector sources retrieve. A ChunkRef names a chunk without depending on any
// storage row id, so hits from different sources can be merged:
//
//	ref := types.ChunkRef{RecordID: "X-100", Type: types.ChunkFeatures}
//
// Candidate holds the raw per-query scores of a chunk. RankedResult is what
// fusion produces; its Breakdown carries the normalized lexical and vector
// scores and the category weight that were multiplied into Score.
package types
