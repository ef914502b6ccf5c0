// Package chunker derives searchable chunks from catalog records.
//
// Every record yields exactly three chunks:
//   - features: name, id, category, feature list and price
//   - usecases: description plus use cases chosen by profile rules
//   - specs: feature tags found in the record text and the full feature list
//
// Tag and use-case rules come from a YAML profile. The built-in profile is
// embedded; LoadProfile reads a replacement.
//
// # Basic Usage
//
//	c := chunker.New()
//	chunks, err := c.ChunkRecord(rec)
//	if err != nil {
//	    return err
//	}
//	for _, chunk := range chunks {
//	    fmt.Println(chunk.Ref(), len(chunk.Content))
//	}
//
// Chunk content is deterministic for a given record and profile, so the
// SHA-256 ContentHash of each chunk can be compared across imports.
package chunker
