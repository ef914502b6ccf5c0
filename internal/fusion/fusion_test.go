package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/productrank-mcp/pkg/types"
)

var defaultWeights = Weights{Lexical: 0.35, Vector: 0.65}

func cand(id string, seq int, lexical, vector, weight float64) types.Candidate {
	return types.Candidate{
		Ref:       types.ChunkRef{RecordID: id, Type: types.ChunkFeatures},
		Name:      id,
		Lexical:   lexical,
		Vector:    vector,
		HasVector: true,
		Weight:    weight,
		Seq:       seq,
	}
}

func TestNormalizeLexical(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"singleton positive", []float64{3.2}, []float64{1.0}},
		{"singleton zero", []float64{0}, []float64{0}},
		{"all zero", []float64{0, 0}, []float64{0, 0}},
		{"scaled by max", []float64{4, 2, 0}, []float64{1.0, 0.5, 0}},
		{"equal positives", []float64{2, 2}, []float64{1.0, 1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLexical(tt.raw))
		})
	}
}

func TestFuseCategoryBoost(t *testing.T) {
	// two candidates with equal base scores: lexical_norm 0.8, vector 0.6
	cands := []types.Candidate{
		cand("AUDIO-1", 0, 1.0, 0.6, 2.0),
		cand("LAMP-1", 1, 1.0, 0.6, 0.7),
		cand("ANCHOR", 2, 1.25, 0, 1.0),
	}
	got := Fuse(cands, Weights{Lexical: 0.5, Vector: 0.5}, 0.2)
	require.Len(t, got, 3)

	byID := map[string]types.RankedResult{}
	for _, r := range got {
		byID[r.RecordID] = r
	}
	assert.InDelta(t, 0.8, byID["AUDIO-1"].Breakdown.LexicalNorm, 1e-12)
	assert.InDelta(t, 1.4, byID["AUDIO-1"].Score, 1e-12)
	assert.InDelta(t, 0.49, byID["LAMP-1"].Score, 1e-12)
	assert.Equal(t, "AUDIO-1", got[0].RecordID)
}

func TestFuseBoostRatioWithDefaultWeights(t *testing.T) {
	// base 0.8 for both: 0.35*0.8 + 0.65*0.8
	cands := []types.Candidate{
		cand("AUDIO-1", 0, 0.8, 0.8, 2.0),
		cand("LAMP-1", 1, 0.8, 0.8, 0.7),
		cand("ANCHOR", 2, 1.0, 0, 1.0),
	}
	got := Fuse(cands, defaultWeights, 0.2)
	require.Len(t, got, 3)
	assert.Equal(t, "AUDIO-1", got[0].RecordID)
	assert.InDelta(t, 1.6, got[0].Score, 1e-9)

	var lamp types.RankedResult
	for _, r := range got {
		if r.RecordID == "LAMP-1" {
			lamp = r
		}
	}
	assert.InDelta(t, 0.56, lamp.Score, 1e-9)
}

func TestFuseThresholdExcludes(t *testing.T) {
	cands := []types.Candidate{
		cand("A", 0, 0, 0.1, 1.0),
		cand("B", 1, 0, 0.9, 1.0),
	}
	got := Fuse(cands, defaultWeights, 0.2)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].RecordID)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Score, 0.2)
	}
}

func TestFuseAllBelowThreshold(t *testing.T) {
	cands := []types.Candidate{cand("A", 0, 0, 0.1, 0.7), cand("B", 1, 0, 0.05, 0.7)}
	got := Fuse(cands, defaultWeights, 0.2)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFuseMissingVectorIsZero(t *testing.T) {
	c := cand("A", 0, 2.0, 0.99, 1.0)
	c.HasVector = false
	got := Fuse([]types.Candidate{c}, defaultWeights, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Breakdown.VectorNorm)
	assert.InDelta(t, 0.35, got[0].Score, 1e-12)
}

func TestFuseSingletonNormalizesToOne(t *testing.T) {
	got := Fuse([]types.Candidate{cand("A", 0, 7.3, 0.5, 1.0)}, defaultWeights, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Breakdown.LexicalNorm)
}

func TestFuseSingletonWithoutOverlap(t *testing.T) {
	got := Fuse([]types.Candidate{cand("A", 0, 0, 0.2, 1.0)}, defaultWeights, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Breakdown.LexicalNorm)
	assert.InDelta(t, 0.13, got[0].Score, 1e-12)

	assert.Empty(t, Fuse([]types.Candidate{cand("A", 0, 0, 0.2, 1.0)}, defaultWeights, 0.2))
}

func TestFuseTiesKeepInsertionOrder(t *testing.T) {
	cands := []types.Candidate{
		cand("first", 0, 1, 0.5, 1.0),
		cand("second", 1, 1, 0.5, 1.0),
		cand("third", 2, 1, 0.5, 1.0),
	}
	for i := 0; i < 10; i++ {
		got := Fuse(cands, defaultWeights, 0)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"first", "second", "third"},
			[]string{got[0].RecordID, got[1].RecordID, got[2].RecordID})
	}
}

func TestFuseDoesNotMutateCandidates(t *testing.T) {
	cands := []types.Candidate{cand("A", 0, 3, 0.5, 2.0), cand("B", 1, 1, 0.4, 0.7)}
	before := append([]types.Candidate(nil), cands...)
	Fuse(cands, defaultWeights, 0)
	assert.Equal(t, before, cands)
}

func TestFuseMonotonic(t *testing.T) {
	cands := []types.Candidate{
		cand("A", 0, 0.2, 0.9, 0.7),
		cand("B", 1, 3.0, 0.1, 2.0),
		cand("C", 2, 1.5, 0.5, 1.5),
		cand("D", 3, 0.0, 0.8, 1.0),
	}
	got := Fuse(cands, defaultWeights, 0)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}
