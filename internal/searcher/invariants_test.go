//go:build !rankassert

package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/productrank-mcp/pkg/types"
)

func valid(id string, rank int, score float64) types.RankedResult {
	return types.RankedResult{
		RecordID:  id,
		Rank:      rank,
		Score:     score,
		Breakdown: types.Breakdown{LexicalNorm: 0.5, VectorNorm: 0.5, CategoryWeight: 1},
	}
}

func TestCheckResults(t *testing.T) {
	tests := []struct {
		name    string
		results []types.RankedResult
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", []types.RankedResult{valid("A", 1, 0.9), valid("B", 2, 0.9), valid("C", 3, 0.3)}, false},
		{"increasing", []types.RankedResult{valid("A", 1, 0.3), valid("B", 2, 0.9)}, true},
		{"duplicate", []types.RankedResult{valid("A", 1, 0.9), valid("A", 2, 0.5)}, true},
		{"below threshold", []types.RankedResult{valid("A", 1, 0.1)}, true},
		{"wrong rank", []types.RankedResult{valid("A", 2, 0.9)}, true},
		{"norm out of range", []types.RankedResult{func() types.RankedResult {
			r := valid("A", 1, 0.9)
			r.Breakdown.LexicalNorm = 1.2
			return r
		}()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkResults(tt.results, 0.2)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvariantViolation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
