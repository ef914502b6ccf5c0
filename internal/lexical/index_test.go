package lexical

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/productrank-mcp/pkg/types"
)

func doc(id string, ct types.ChunkType, text string) Document {
	return Document{Ref: types.ChunkRef{RecordID: id, Type: ct}, Name: id, Text: text}
}

func testCorpus() []Document {
	return []Document{
		doc("X-100", types.ChunkFeatures, "waterproof bluetooth speaker with deep bass"),
		doc("X-100", types.ChunkSpecs, "speaker IPX7 waterproof rating twenty hour battery"),
		doc("Y-200", types.ChunkFeatures, "ergonomic office chair with lumbar support"),
		doc("Z-300", types.ChunkFeatures, "防水藍牙喇叭 戶外派對"),
		doc("L-010", types.ChunkFeatures, "warm desk lamp with dimmer"),
	}
}

func TestScoreRanksOverlap(t *testing.T) {
	ix, err := Build(testCorpus(), DefaultOptions())
	require.NoError(t, err)

	hits, err := ix.Score(context.Background(), "waterproof speaker")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	for _, h := range hits {
		assert.Equal(t, "X-100", ix.Document(h.Doc).Ref.RecordID)
		assert.Greater(t, h.Score, 0.0)
	}
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestScoreZeroOverlap(t *testing.T) {
	ix, err := Build(testCorpus(), DefaultOptions())
	require.NoError(t, err)

	hits, err := ix.Score(context.Background(), "coffee grinder")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ix.Score(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestScoreCJK(t *testing.T) {
	ix, err := Build(testCorpus(), DefaultOptions())
	require.NoError(t, err)

	hits, err := ix.Score(context.Background(), "藍牙喇叭")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Z-300", ix.Document(hits[0].Doc).Ref.RecordID)
}

func TestSingleDocumentCorpusScoresPositive(t *testing.T) {
	ix, err := Build([]Document{doc("A-1", types.ChunkFeatures, "portable speaker")}, DefaultOptions())
	require.NoError(t, err)

	hits, err := ix.Score(context.Background(), "speaker")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestShardedScoringMatchesSequential(t *testing.T) {
	var docs []Document
	for i := 0; i < 1000; i++ {
		text := fmt.Sprintf("product %d speaker", i)
		if i%3 == 0 {
			text += " waterproof"
		}
		if i%7 == 0 {
			text += " waterproof waterproof bass"
		}
		docs = append(docs, doc(fmt.Sprintf("P-%d", i), types.ChunkFeatures, text))
	}

	seq, err := Build(docs, DefaultOptions())
	require.NoError(t, err)

	pool, err := NewPool(4)
	require.NoError(t, err)
	defer pool.Release()

	opts := DefaultOptions()
	opts.Pool = pool
	opts.ShardSize = 64
	par, err := Build(docs, opts)
	require.NoError(t, err)

	want, err := seq.Score(context.Background(), "waterproof speaker bass")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		got, err := par.Score(context.Background(), "waterproof speaker bass")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestScoreCanceled(t *testing.T) {
	ix, err := Build(testCorpus(), DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ix.Score(ctx, "speaker")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildRejectsDuplicates(t *testing.T) {
	docs := []Document{
		doc("A-1", types.ChunkFeatures, "one"),
		doc("A-1", types.ChunkFeatures, "two"),
	}
	_, err := Build(docs, DefaultOptions())
	assert.ErrorIs(t, err, ErrDuplicateDocument)
}

func TestBuildRejectsBadParameters(t *testing.T) {
	opts := DefaultOptions()
	opts.B = 1.5
	_, err := Build(testCorpus(), opts)
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	ix, err := Build(testCorpus(), DefaultOptions())
	require.NoError(t, err)

	i, ok := ix.Lookup(types.ChunkRef{RecordID: "Y-200", Type: types.ChunkFeatures})
	require.True(t, ok)
	assert.Equal(t, "Y-200", ix.Document(i).Name)

	_, ok = ix.Lookup(types.ChunkRef{RecordID: "Y-200", Type: types.ChunkSpecs})
	assert.False(t, ok)
}
