// Package dedup collapses ranked chunks to one entry per record.
package dedup

import (
	"sort"

	"github.com/dshills/productrank-mcp/pkg/types"
)

// Options configures deduplication
type Options struct {
	// PreferChunk, when set, makes the surviving entry display the text of
	// this chunk type if the record has such a chunk in the input. Score and
	// breakdown always come from the record's best chunk.
	PreferChunk types.ChunkType
}

// Dedupe keeps the highest-scoring entry per record and returns at most
// limit entries with ranks 1..n. Input sorted by descending score is
// consumed in a single pass that stops after limit distinct records;
// unsorted input is sorted first. The input slice is not modified.
// limit <= 0 means no limit.
func Dedupe(ranked []types.RankedResult, limit int, opts Options) []types.RankedResult {
	in := ranked
	if !isSorted(in) {
		in = append([]types.RankedResult(nil), ranked...)
		sortResults(in)
	}

	var preferred map[string]types.RankedResult
	if opts.PreferChunk != "" {
		preferred = make(map[string]types.RankedResult)
		for _, r := range in {
			if r.ChunkType != opts.PreferChunk {
				continue
			}
			if _, ok := preferred[r.RecordID]; !ok {
				preferred[r.RecordID] = r
			}
		}
	}

	seen := make(map[string]struct{})
	out := make([]types.RankedResult, 0, min(len(in), capFor(limit, len(in))))
	for _, r := range in {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, dup := seen[r.RecordID]; dup {
			continue
		}
		seen[r.RecordID] = struct{}{}

		if p, ok := preferred[r.RecordID]; ok && p.ChunkType != r.ChunkType {
			r.ChunkType = p.ChunkType
			r.Text = p.Text
		}
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out
}

func capFor(limit, n int) int {
	if limit <= 0 {
		return n
	}
	return limit
}

func isSorted(rs []types.RankedResult) bool {
	for i := 1; i < len(rs); i++ {
		if less(rs[i], rs[i-1]) {
			return false
		}
	}
	return true
}

func less(a, b types.RankedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Seq < b.Seq
}

func sortResults(rs []types.RankedResult) {
	sort.SliceStable(rs, func(i, j int) bool { return less(rs[i], rs[j]) })
}
