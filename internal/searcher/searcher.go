package searcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/productrank-mcp/internal/category"
	"github.com/dshills/productrank-mcp/internal/dedup"
	"github.com/dshills/productrank-mcp/internal/fusion"
	"github.com/dshills/productrank-mcp/internal/lexical"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// ErrNoIndex is returned when Search runs before a lexical index is loaded
var ErrNoIndex = errors.New("lexical index not loaded")

// VectorSource returns the nearest chunks to a query. Implementations may
// return fewer than count hits, may be slow and may fail; the searcher
// bounds the call with a timeout and ranks lexically when it fails.
type VectorSource interface {
	Nearest(ctx context.Context, query string, count int) ([]types.VectorHit, error)
}

// Response contains search results and metadata
type Response struct {
	QueryID    string
	Results    []types.RankedResult
	Categories []string // inferred from the query

	Degraded       bool // vector source failed or timed out
	DegradedReason string

	LexicalHits int
	VectorHits  int
	Candidates  int
	Duration    time.Duration
}

// Searcher ranks catalog chunks against queries. The category table and
// the lexical snapshot are shared read-only by concurrent queries; a query
// keeps all of its state on its own stack.
type Searcher struct {
	table   *category.Table
	vectors VectorSource
	catalog Catalog
	lexOpts lexical.Options
	logger  zerolog.Logger

	index atomic.Pointer[lexical.Index]
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithCatalog sets the record store used by Refresh and to resolve vector
// hits for chunks that are not in the lexical snapshot
func WithCatalog(c Catalog) Option {
	return func(s *Searcher) { s.catalog = c }
}

// WithLexicalOptions sets BM25 parameters and the scoring pool used by Refresh
func WithLexicalOptions(o lexical.Options) Option {
	return func(s *Searcher) { s.lexOpts = o }
}

// WithIndex installs an already built lexical snapshot
func WithIndex(ix *lexical.Index) Option {
	return func(s *Searcher) { s.index.Store(ix) }
}

// New creates a Searcher
func New(table *category.Table, vectors VectorSource, opts ...Option) (*Searcher, error) {
	if table == nil {
		return nil, fmt.Errorf("category table is required")
	}
	if vectors == nil {
		return nil, fmt.Errorf("vector source is required")
	}
	s := &Searcher{
		table:   table,
		vectors: vectors,
		lexOpts: lexical.DefaultOptions(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Table returns the category table
func (s *Searcher) Table() *category.Table { return s.table }

// Index returns the current lexical snapshot, or nil
func (s *Searcher) Index() *lexical.Index { return s.index.Load() }

// SetIndex swaps in a new lexical snapshot. Queries already running keep
// the snapshot they started with.
func (s *Searcher) SetIndex(ix *lexical.Index) { s.index.Store(ix) }

// Refresh rebuilds the lexical snapshot from the catalog
func (s *Searcher) Refresh(ctx context.Context) error {
	if s.catalog == nil {
		return fmt.Errorf("refresh requires a catalog")
	}
	ix, err := BuildIndex(ctx, s.catalog, s.table, s.lexOpts)
	if err != nil {
		return fmt.Errorf("failed to build lexical index: %w", err)
	}
	s.SetIndex(ix)
	s.logger.Info().Int("documents", ix.Len()).Msg("lexical index refreshed")
	return nil
}

type vectorOutcome struct {
	hits []types.VectorHit
	err  error
}

// Search ranks the catalog against query. Parameters are validated before
// any work starts. Lexical scoring and the vector lookup run concurrently;
// a failing or slow vector source degrades the query to lexical ranking.
func (s *Searcher) Search(ctx context.Context, query string, p Params) (*Response, error) {
	start := time.Now()

	if err := validateQuery(query); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ix := s.index.Load()
	if ix == nil {
		return nil, ErrNoIndex
	}

	resp := &Response{QueryID: uuid.NewString()}
	log := s.logger.With().Str("query_id", resp.QueryID).Logger()

	var lexHits []lexical.Hit
	var vec vectorOutcome

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := ix.Score(gctx, query)
		if err != nil {
			return fmt.Errorf("lexical scoring failed: %w", err)
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		vec = s.nearest(gctx, query, p)
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if vec.err != nil {
		resp.Degraded = true
		resp.DegradedReason = degradedReason(vec.err)
		vec.hits = nil
		log.Warn().Err(vec.err).Str("reason", resp.DegradedReason).
			Msg("vector source degraded, ranking lexical only")
	}

	var inferred category.Set
	if p.EnableCategoryWeight {
		inferred = s.table.Infer(query)
		resp.Categories = inferred.Names()
	}

	candidates := s.merge(ctx, ix, lexHits, vec.hits, log)
	for i := range candidates {
		candidates[i].Weight = category.Neutral
		if p.EnableCategoryWeight {
			candidates[i].Weight = s.table.Weight(inferred, candidates[i].Category)
		}
	}

	fused := fusion.Fuse(candidates, fusion.Weights{Lexical: p.LexicalWeight, Vector: p.VectorWeight}, p.ScoreThreshold)
	results := dedup.Dedupe(fused, p.Limit, dedup.Options{PreferChunk: p.PreferChunk})

	if err := checkResults(results, p.ScoreThreshold); err != nil {
		log.Error().Err(err).Str("query", query).Msg("ranking invariant violated")
		return nil, err
	}

	resp.Results = results
	resp.LexicalHits = len(lexHits)
	resp.VectorHits = len(vec.hits)
	resp.Candidates = len(candidates)
	resp.Duration = time.Since(start)

	log.Debug().
		Int("lexical_hits", resp.LexicalHits).
		Int("vector_hits", resp.VectorHits).
		Int("candidates", resp.Candidates).
		Int("results", len(results)).
		Strs("categories", resp.Categories).
		Dur("duration", resp.Duration).
		Msg("search completed")

	return resp, nil
}

// nearest calls the vector source under the per-query timeout. The call
// runs on its own goroutine so a source that ignores its context still
// cannot hold the query past the deadline.
func (s *Searcher) nearest(ctx context.Context, query string, p Params) vectorOutcome {
	vctx, cancel := context.WithTimeout(ctx, p.VectorTimeout)
	defer cancel()

	ch := make(chan vectorOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- vectorOutcome{err: fmt.Errorf("vector source panicked: %v", r)}
			}
		}()
		hits, err := s.vectors.Nearest(vctx, query, p.Limit*p.CandidateMultiplier)
		ch <- vectorOutcome{hits: hits, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			out.err = fmt.Errorf("vector source: %w", out.err)
		}
		return out
	case <-vctx.Done():
		return vectorOutcome{err: fmt.Errorf("vector source: %w", vctx.Err())}
	}
}

func degradedReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// merge builds the candidate set keyed by chunk. Lexical hits come first
// in score order, then vector-only chunks in source order; that order is
// the tie-break for equal final scores.
func (s *Searcher) merge(ctx context.Context, ix *lexical.Index, lexHits []lexical.Hit, vecHits []types.VectorHit, log zerolog.Logger) []types.Candidate {
	candidates := make([]types.Candidate, 0, len(lexHits)+len(vecHits))
	pos := make(map[types.ChunkRef]int, cap(candidates))

	for _, h := range lexHits {
		d := ix.Document(h.Doc)
		pos[d.Ref] = len(candidates)
		candidates = append(candidates, types.Candidate{
			Ref:      d.Ref,
			Name:     d.Name,
			Category: d.Category,
			Text:     d.Text,
			Lexical:  h.Score,
			Seq:      len(candidates),
		})
	}

	for _, vh := range vecHits {
		sim, ok := similarity(vh.Similarity)
		if !ok {
			log.Warn().Str("chunk", vh.Ref.String()).Float64("similarity", vh.Similarity).
				Msg("dropping vector hit with invalid similarity")
			continue
		}
		if sim != vh.Similarity {
			log.Warn().Str("chunk", vh.Ref.String()).Float64("similarity", vh.Similarity).
				Msg("vector similarity outside [0,1], clamped")
		}

		if i, ok := pos[vh.Ref]; ok {
			c := &candidates[i]
			if !c.HasVector || sim > c.Vector {
				c.Vector, c.HasVector = sim, true
			}
			continue
		}

		d, ok := s.resolve(ctx, ix, vh.Ref)
		if !ok {
			log.Debug().Str("chunk", vh.Ref.String()).Msg("vector hit for unknown record dropped")
			continue
		}
		pos[vh.Ref] = len(candidates)
		candidates = append(candidates, types.Candidate{
			Ref:       d.Ref,
			Name:      d.Name,
			Category:  d.Category,
			Text:      d.Text,
			Vector:    sim,
			HasVector: true,
			Seq:       len(candidates),
		})
	}
	return candidates
}

// resolve finds display data for a vector-only chunk: first in the lexical
// snapshot, then through the catalog
func (s *Searcher) resolve(ctx context.Context, ix *lexical.Index, ref types.ChunkRef) (lexical.Document, bool) {
	if i, ok := ix.Lookup(ref); ok {
		return ix.Document(i), true
	}
	if s.catalog == nil {
		return lexical.Document{}, false
	}
	rec, err := s.catalog.RecordByID(ctx, ref.RecordID)
	if err != nil || rec == nil {
		return lexical.Document{}, false
	}
	return documentFor(s.table, rec, ref.Type, rec.Description), true
}

// similarity validates a vector score. NaN is rejected; anything else is
// clamped into [0, 1].
func similarity(v float64) (float64, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	return math.Max(0, math.Min(1, v)), true
}
