// Package fusion combines lexical and vector scores into one ranking.
//
//	final = (alpha*lexical_norm + beta*vector_norm) * category_weight
//
// Lexical scores are scaled against the best lexical score in the candidate
// set. Vector similarities are taken as already lying in [0, 1].
package fusion

import (
	"math"
	"sort"

	"github.com/dshills/productrank-mcp/pkg/types"
)

// Weights are the linear fusion coefficients
type Weights struct {
	Lexical float64
	Vector  float64
}

// NormalizeLexical scales raw BM25 scores into [0, 1]. A single candidate
// with a positive score gets 1.0. When no candidate has a positive score
// every value is 0. Otherwise each score is divided by the maximum.
func NormalizeLexical(raw []float64) []float64 {
	out := make([]float64, len(raw))
	switch len(raw) {
	case 0:
		return out
	case 1:
		if raw[0] > 0 {
			out[0] = 1.0
		}
		return out
	}

	maxScore := 0.0
	for _, s := range raw {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore <= 0 {
		return out
	}
	for i, s := range raw {
		if s > 0 {
			out[i] = math.Min(s/maxScore, 1.0)
		}
	}
	return out
}

// Fuse scores every candidate, drops those below threshold and returns the
// rest sorted by descending score. Equal scores keep candidate Seq order.
// Candidates are not modified. An empty result is returned as an empty
// slice; the threshold is never relaxed.
func Fuse(candidates []types.Candidate, w Weights, threshold float64) []types.RankedResult {
	raw := make([]float64, len(candidates))
	for i, c := range candidates {
		raw[i] = c.Lexical
	}
	lexNorm := NormalizeLexical(raw)

	out := make([]types.RankedResult, 0, len(candidates))
	for i, c := range candidates {
		vecNorm := 0.0
		if c.HasVector {
			vecNorm = c.Vector
		}
		score := (w.Lexical*lexNorm[i] + w.Vector*vecNorm) * c.Weight
		if score < threshold {
			continue
		}
		out = append(out, types.RankedResult{
			RecordID:  c.Ref.RecordID,
			Name:      c.Name,
			Category:  c.Category,
			ChunkType: c.Ref.Type,
			Text:      c.Text,
			Score:     score,
			Breakdown: types.Breakdown{
				LexicalNorm:    lexNorm[i],
				VectorNorm:     vecNorm,
				CategoryWeight: c.Weight,
			},
			Seq: c.Seq,
		})
	}

	SortResults(out)
	return out
}

// SortResults orders results by descending score, then ascending Seq
func SortResults(results []types.RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Seq < results[j].Seq
	})
}
