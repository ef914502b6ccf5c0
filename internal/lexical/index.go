package lexical

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/dshills/productrank-mcp/internal/textnorm"
	"github.com/dshills/productrank-mcp/pkg/types"
)

const (
	DefaultK1        = 1.2
	DefaultB         = 0.75
	DefaultShardSize = 256
)

// ErrDuplicateDocument is returned by Build when two documents share a ChunkRef
var ErrDuplicateDocument = errors.New("duplicate document")

// Document is one chunk in the scoring corpus
type Document struct {
	Ref      types.ChunkRef
	Name     string
	Category string // canonical category, "" when unknown
	Text     string
}

// Options configures BM25 and the scoring fan-out
type Options struct {
	K1        float64
	B         float64
	ShardSize int        // documents per worker task
	Pool      *ants.Pool // nil scores sequentially
}

// DefaultOptions returns k1=1.2, b=0.75 and sequential scoring
func DefaultOptions() Options {
	return Options{K1: DefaultK1, B: DefaultB, ShardSize: DefaultShardSize}
}

type posting struct {
	doc int
	tf  int
}

// Index is an immutable BM25 snapshot over every chunk of every record.
// Chunk types share one corpus and one set of parameters, so scores for
// different chunks of the same record are directly comparable.
type Index struct {
	docs     []Document
	lengths  []int
	avgLen   float64
	postings map[string][]posting // sorted by doc
	byRef    map[types.ChunkRef]int
	opts     Options
}

// Hit is a document with a positive BM25 score
type Hit struct {
	Doc   int
	Score float64
}

// Build tokenizes docs and builds the inverted index
func Build(docs []Document, opts Options) (*Index, error) {
	if opts.K1 < 0 || opts.B < 0 || opts.B > 1 {
		return nil, fmt.Errorf("invalid BM25 parameters k1=%v b=%v", opts.K1, opts.B)
	}
	if opts.ShardSize <= 0 {
		opts.ShardSize = DefaultShardSize
	}

	ix := &Index{
		docs:     make([]Document, len(docs)),
		lengths:  make([]int, len(docs)),
		postings: make(map[string][]posting),
		byRef:    make(map[types.ChunkRef]int, len(docs)),
		opts:     opts,
	}
	copy(ix.docs, docs)

	total := 0
	for i, d := range ix.docs {
		if _, dup := ix.byRef[d.Ref]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDocument, d.Ref)
		}
		ix.byRef[d.Ref] = i

		terms := textnorm.Tokens(d.Text)
		ix.lengths[i] = len(terms)
		total += len(terms)

		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}
		for term, n := range tf {
			ix.postings[term] = append(ix.postings[term], posting{doc: i, tf: n})
		}
	}
	// docs are visited in order, so each posting list is already sorted
	if len(docs) > 0 {
		ix.avgLen = float64(total) / float64(len(docs))
	}
	if ix.avgLen == 0 {
		ix.avgLen = 1
	}
	return ix, nil
}

// Len returns the number of documents
func (ix *Index) Len() int { return len(ix.docs) }

// Document returns document i
func (ix *Index) Document(i int) Document { return ix.docs[i] }

// Lookup finds a document by chunk reference
func (ix *Index) Lookup(ref types.ChunkRef) (int, bool) {
	i, ok := ix.byRef[ref]
	return i, ok
}

type queryTerm struct {
	idf      float64
	postings []posting
}

// Score returns every document sharing at least one term with the query,
// ordered by descending score with corpus order breaking ties. Documents
// with zero overlap are not returned. Results are bit-identical for the
// same index and query regardless of how scoring was sharded.
func (ix *Index) Score(ctx context.Context, query string) ([]Hit, error) {
	n := len(ix.docs)
	if n == 0 {
		return nil, nil
	}

	var qterms []queryTerm
	for _, term := range textnorm.Unique(textnorm.Tokens(query)) {
		p := ix.postings[term]
		if len(p) == 0 {
			continue
		}
		qterms = append(qterms, queryTerm{idf: idf(n, len(p)), postings: p})
	}
	if len(qterms) == 0 {
		return nil, nil
	}

	scores := make([]float64, n)
	if err := ix.scoreShards(ctx, qterms, scores); err != nil {
		return nil, err
	}

	var hits []Hit
	for i, s := range scores {
		if s > 0 {
			hits = append(hits, Hit{Doc: i, Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}

// scoreShards splits the corpus into contiguous ranges. Each range writes
// only its own slice of scores.
func (ix *Index) scoreShards(ctx context.Context, qterms []queryTerm, scores []float64) error {
	n := len(scores)
	size := ix.opts.ShardSize
	if ix.opts.Pool == nil || n <= size {
		if err := ctx.Err(); err != nil {
			return err
		}
		ix.scoreRange(qterms, scores, 0, n)
		return nil
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += size {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		hi := min(lo+size, n)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			ix.scoreRange(qterms, scores, lo, hi)
		}
		if err := ix.opts.Pool.Submit(task); err != nil {
			// pool closed or overloaded, score on this goroutine
			task()
		}
	}
	wg.Wait()
	return ctx.Err()
}

func (ix *Index) scoreRange(qterms []queryTerm, scores []float64, lo, hi int) {
	k1, b := ix.opts.K1, ix.opts.B
	for _, qt := range qterms {
		p := qt.postings
		start := sort.Search(len(p), func(i int) bool { return p[i].doc >= lo })
		for _, post := range p[start:] {
			if post.doc >= hi {
				break
			}
			tf := float64(post.tf)
			norm := 1 - b + b*float64(ix.lengths[post.doc])/ix.avgLen
			scores[post.doc] += qt.idf * tf * (k1 + 1) / (tf + k1*norm)
		}
	}
}

// idf is the non-negative BM25 inverse document frequency
func idf(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}
