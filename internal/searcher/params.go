package searcher

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dshills/productrank-mcp/pkg/types"
)

// Search defaults
const (
	DefaultLimit               = 10
	DefaultLexicalWeight       = 0.35
	DefaultVectorWeight        = 0.65
	DefaultScoreThreshold      = 0.2
	DefaultVectorTimeout       = 2 * time.Second
	DefaultCandidateMultiplier = 3

	// MaxLimit bounds the number of results one query may ask for
	MaxLimit = 1000
)

var (
	// ErrInvalidConfig is returned before any work starts when search
	// parameters are out of range. Values are never clamped.
	ErrInvalidConfig = errors.New("invalid search configuration")

	// ErrEmptyQuery is returned for a blank query
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Params are the per-call search parameters
type Params struct {
	Limit                int
	LexicalWeight        float64
	VectorWeight         float64
	EnableCategoryWeight bool
	ScoreThreshold       float64

	// VectorTimeout bounds the vector source call. When it expires the
	// query is ranked on lexical scores alone.
	VectorTimeout time.Duration

	// CandidateMultiplier sets how many neighbours are requested from the
	// vector source: Limit * CandidateMultiplier.
	CandidateMultiplier int

	// PreferChunk selects which chunk's text a deduplicated result shows.
	// Empty shows the best-scoring chunk.
	PreferChunk types.ChunkType
}

// DefaultParams returns limit 10, weights 0.35/0.65, category weighting on
// and threshold 0.2
func DefaultParams() Params {
	return Params{
		Limit:                DefaultLimit,
		LexicalWeight:        DefaultLexicalWeight,
		VectorWeight:         DefaultVectorWeight,
		EnableCategoryWeight: true,
		ScoreThreshold:       DefaultScoreThreshold,
		VectorTimeout:        DefaultVectorTimeout,
		CandidateMultiplier:  DefaultCandidateMultiplier,
	}
}

// Validate rejects out-of-range parameters
func (p Params) Validate() error {
	switch {
	case p.Limit < 1:
		return fmt.Errorf("%w: limit must be >= 1, got %d", ErrInvalidConfig, p.Limit)
	case p.Limit > MaxLimit:
		return fmt.Errorf("%w: limit must be <= %d, got %d", ErrInvalidConfig, MaxLimit, p.Limit)
	case !nonNegative(p.LexicalWeight):
		return fmt.Errorf("%w: lexical weight must be a non-negative number, got %v", ErrInvalidConfig, p.LexicalWeight)
	case !nonNegative(p.VectorWeight):
		return fmt.Errorf("%w: vector weight must be a non-negative number, got %v", ErrInvalidConfig, p.VectorWeight)
	case p.LexicalWeight == 0 && p.VectorWeight == 0:
		return fmt.Errorf("%w: lexical and vector weights cannot both be zero", ErrInvalidConfig)
	case !nonNegative(p.ScoreThreshold):
		return fmt.Errorf("%w: score threshold must be a non-negative number, got %v", ErrInvalidConfig, p.ScoreThreshold)
	case p.ScoreThreshold > 1:
		return fmt.Errorf("%w: score threshold must be <= 1, got %v", ErrInvalidConfig, p.ScoreThreshold)
	case p.VectorTimeout <= 0:
		return fmt.Errorf("%w: vector timeout must be positive, got %s", ErrInvalidConfig, p.VectorTimeout)
	case p.CandidateMultiplier < 1:
		return fmt.Errorf("%w: candidate multiplier must be >= 1, got %d", ErrInvalidConfig, p.CandidateMultiplier)
	case p.PreferChunk != "" && !p.PreferChunk.Valid():
		return fmt.Errorf("%w: unknown chunk type %q", ErrInvalidConfig, p.PreferChunk)
	}
	return nil
}

func nonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

func validateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmptyQuery
	}
	return nil
}
