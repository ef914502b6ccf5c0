// Package explore runs several candidate strategies on the same input in
// parallel, scores every output with one rubric and keeps the best.
//
// Strategies must be pure with respect to shared state: each works on its
// own copy of whatever it needs, so running them concurrently cannot change
// any result. Only the final reduction compares outputs.
package explore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// ErrNoStrategies is returned when Best is called with nothing to run
var ErrNoStrategies = errors.New("no strategies to explore")

// Strategy is one named way of producing an output from an input
type Strategy[I, O any] struct {
	Name string
	Run  func(ctx context.Context, in I) (O, error)
}

// Outcome is the winning strategy with its output and every strategy's score
type Outcome[O any] struct {
	Name   string
	Index  int
	Output O
	Score  float64
	Scores []float64 // by strategy index
}

// Best runs every strategy, at most limit at a time (limit <= 0 means no
// limit), and returns the highest-scoring output. Ties go to the strategy
// listed first. Any strategy error fails the whole run.
func Best[I, O any](ctx context.Context, in I, strategies []Strategy[I, O], rubric func(O) float64, limit int) (*Outcome[O], error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}

	outputs := make([]O, len(strategies))
	scores := make([]float64, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, st := range strategies {
		g.Go(func() error {
			out, err := st.Run(gctx, in)
			if err != nil {
				return fmt.Errorf("strategy %q: %w", st.Name, err)
			}
			score := rubric(out)
			if math.IsNaN(score) {
				return fmt.Errorf("strategy %q: rubric returned NaN", st.Name)
			}
			outputs[i] = out
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return &Outcome[O]{
		Name:   strategies[best].Name,
		Index:  best,
		Output: outputs[best],
		Score:  scores[best],
		Scores: scores,
	}, nil
}
