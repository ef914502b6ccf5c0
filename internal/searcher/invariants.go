package searcher

import (
	"errors"
	"fmt"

	"github.com/dshills/productrank-mcp/pkg/types"
)

// ErrInvariantViolation reports a ranking bug. It is never expected in a
// correct build.
var ErrInvariantViolation = errors.New("ranking invariant violated")

// checkResults verifies the output contract: ranks 1..n, distinct records,
// non-increasing finite scores at or above the threshold and normalized
// components in [0, 1].
func checkResults(results []types.RankedResult, threshold float64) error {
	seen := make(map[string]struct{}, len(results))
	for i, r := range results {
		if err := r.Validate(); err != nil {
			return violation("result %d (%s): %v", i, r.RecordID, err)
		}
		if r.Rank != i+1 {
			return violation("result %d has rank %d", i, r.Rank)
		}
		if r.Score < threshold {
			return violation("result %d (%s) scored %v below threshold %v", i, r.RecordID, r.Score, threshold)
		}
		if i > 0 && results[i-1].Score < r.Score {
			return violation("scores increase at position %d: %v < %v", i, results[i-1].Score, r.Score)
		}
		if _, dup := seen[r.RecordID]; dup {
			return violation("record %s appears twice", r.RecordID)
		}
		seen[r.RecordID] = struct{}{}
	}
	return nil
}

func violation(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
	if panicOnViolation {
		panic(err)
	}
	return err
}
