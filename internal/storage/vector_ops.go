package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/productrank-mcp/pkg/types"
)

// ErrMalformedVector is returned for blobs that are not a whole number of float32s
var ErrMalformedVector = errors.New("malformed vector blob")

// searchVector ranks stored embeddings by cosine similarity in Go.
// Embeddings whose dimension differs from the query are skipped.
func searchVector(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return []VectorResult{}, nil
	}

	query := `
		SELECT
			c.id,
			c.record_id,
			c.chunk_type,
			e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE e.dimension = ?
	`
	args := []any{len(queryVector)}
	query, args = applyVectorFilters(query, args, filters)
	query += " ORDER BY c.id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]VectorResult, 0, 256)
	for rows.Next() {
		var r VectorResult
		var ct string
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.Ref.RecordID, &ct, &blob); err != nil {
			return nil, err
		}
		r.Ref.Type = types.ChunkType(ct)

		vector, err := DeserializeVector(blob)
		if err != nil || len(vector) != len(queryVector) {
			continue
		}
		r.Similarity = cosineSimilarity(queryVector, vector)
		if filters != nil && filters.MinScore > 0 && r.Similarity < filters.MinScore {
			continue
		}
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// chunk id order is the tie-break
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// applyVectorFilters adds WHERE clause filters for vector search
func applyVectorFilters(query string, args []any, filters *SearchFilters) (string, []any) {
	if filters == nil {
		return query, args
	}

	if len(filters.ChunkTypes) > 0 {
		marks := make([]string, len(filters.ChunkTypes))
		for i, ct := range filters.ChunkTypes {
			marks[i] = "?"
			args = append(args, string(ct))
		}
		query += " AND c.chunk_type IN (" + strings.Join(marks, ",") + ")"
	}
	if filters.Provider != "" {
		query += " AND e.provider = ?"
		args = append(args, filters.Provider)
	}
	if filters.Model != "" {
		query += " AND e.model = ?"
		args = append(args, filters.Model)
	}
	return query, args
}

// SerializeVector converts a float32 slice to a little-endian byte blob
func SerializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// DeserializeVector converts a byte blob back to a float32 slice
func DeserializeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedVector, len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero vectors give 0.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
