package searcher

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dshills/productrank-mcp/internal/explore"
)

// EvalCase is a labelled query: the records a good ranking should surface
type EvalCase struct {
	Query    string   `yaml:"query" json:"query"`
	Expected []string `yaml:"expected" json:"expected"`
}

// Preset is a named parameter set to evaluate
type Preset struct {
	Name   string
	Params Params
}

// TuneResult is the winning preset and the mean reciprocal rank of every preset
type TuneResult struct {
	Best   Preset
	Score  float64
	Scores map[string]float64
}

// Tune evaluates presets against cases in parallel and returns the one with
// the highest mean reciprocal rank. Ties go to the preset listed first.
func (s *Searcher) Tune(ctx context.Context, cases []EvalCase, presets []Preset, parallelism int) (*TuneResult, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("tune requires at least one case")
	}
	for _, p := range presets {
		if err := p.Params.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}

	strategies := make([]explore.Strategy[[]EvalCase, []float64], len(presets))
	for i, p := range presets {
		strategies[i] = explore.Strategy[[]EvalCase, []float64]{
			Name: p.Name,
			Run: func(ctx context.Context, cases []EvalCase) ([]float64, error) {
				return s.reciprocalRanks(ctx, cases, p.Params)
			},
		}
	}

	out, err := explore.Best(ctx, cases, strategies, mean, parallelism)
	if err != nil {
		return nil, err
	}

	res := &TuneResult{
		Best:   presets[out.Index],
		Score:  out.Score,
		Scores: make(map[string]float64, len(presets)),
	}
	for i, p := range presets {
		res.Scores[p.Name] = out.Scores[i]
	}
	return res, nil
}

func (s *Searcher) reciprocalRanks(ctx context.Context, cases []EvalCase, p Params) ([]float64, error) {
	rr := make([]float64, len(cases))
	for i, c := range cases {
		resp, err := s.Search(ctx, c.Query, p)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", c.Query, err)
		}
		rr[i] = reciprocalRank(resp, c.Expected)
	}
	return rr, nil
}

func reciprocalRank(resp *Response, expected []string) float64 {
	want := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		want[id] = struct{}{}
	}
	for _, r := range resp.Results {
		if _, ok := want[r.RecordID]; ok {
			return 1 / float64(r.Rank)
		}
	}
	return 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// WeightPair is one lexical/vector weighting
type WeightPair struct {
	Lexical float64
	Vector  float64
}

// PresetGrid crosses weight pairs with score thresholds on top of base.
// Names read "lex0.35-vec0.65-t0.2".
func PresetGrid(base Params, weights []WeightPair, thresholds []float64) []Preset {
	presets := make([]Preset, 0, len(weights)*len(thresholds))
	for _, w := range weights {
		for _, th := range thresholds {
			p := base
			p.LexicalWeight, p.VectorWeight, p.ScoreThreshold = w.Lexical, w.Vector, th
			presets = append(presets, Preset{
				Name:   "lex" + ftoa(w.Lexical) + "-vec" + ftoa(w.Vector) + "-t" + ftoa(th),
				Params: p,
			})
		}
	}
	return presets
}

// DefaultGrid is the weighting and threshold sweep rankctl tune runs when
// no presets are given
func DefaultGrid(base Params) []Preset {
	return PresetGrid(base,
		[]WeightPair{{0.35, 0.65}, {0.5, 0.5}, {0.2, 0.8}, {0.65, 0.35}},
		[]float64{0.1, 0.2, 0.3},
	)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
