package types

import "math"

// VectorHit is one nearest-neighbour answer from a vector source.
// Similarity is expected in [0, 1], higher is closer.
type VectorHit struct {
	Ref        ChunkRef
	Similarity float64
}

// Candidate is a chunk under consideration for one query.
// Candidates are created per query and discarded afterwards.
type Candidate struct {
	Ref      ChunkRef
	Name     string
	Category string // canonical category, "" when unknown
	Text     string

	Lexical   float64 // raw BM25, 0 when the chunk shares no query term
	Vector    float64
	HasVector bool
	Weight    float64 // resolved category weight

	Seq int // insertion order, used as the tie-break
}

// Breakdown exposes the components of a final score
type Breakdown struct {
	LexicalNorm    float64 `json:"lexical_norm"`
	VectorNorm     float64 `json:"vector_norm"`
	CategoryWeight float64 `json:"category_weight"`
}

// RankedResult is a scored candidate after fusion
type RankedResult struct {
	RecordID  string
	Name      string
	Category  string
	ChunkType ChunkType
	Text      string

	Score     float64
	Rank      int // 1-based, assigned after deduplication
	Breakdown Breakdown

	Seq int
}

// Validate checks the per-result invariants
func (r *RankedResult) Validate() error {
	if r.RecordID == "" {
		return ErrEmptyRecordID
	}
	if r.Rank < 1 {
		return ErrInvalidRank
	}
	if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) || r.Score < 0 {
		return ErrInvalidScore
	}
	for _, v := range []float64{r.Breakdown.LexicalNorm, r.Breakdown.VectorNorm} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return ErrInvalidNormalizedScore
		}
	}
	if r.Breakdown.CategoryWeight <= 0 {
		return ErrInvalidCategoryWeight
	}
	return nil
}
