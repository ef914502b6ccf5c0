package explore

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(name string, v int) Strategy[string, int] {
	return Strategy[string, int]{
		Name: name,
		Run:  func(context.Context, string) (int, error) { return v, nil },
	}
}

func identity(o int) float64 { return float64(o) }

func TestBestPicksMax(t *testing.T) {
	out, err := Best(context.Background(), "in", []Strategy[string, int]{
		constant("low", 1), constant("high", 9), constant("mid", 5),
	}, identity, 0)
	require.NoError(t, err)
	assert.Equal(t, "high", out.Name)
	assert.Equal(t, 1, out.Index)
	assert.Equal(t, 9, out.Output)
	assert.Equal(t, []float64{1, 9, 5}, out.Scores)
}

func TestBestTieGoesToFirst(t *testing.T) {
	out, err := Best(context.Background(), "in", []Strategy[string, int]{
		constant("a", 3), constant("b", 7), constant("c", 7),
	}, identity, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Name)
}

func TestBestUsesInput(t *testing.T) {
	upper := Strategy[string, string]{Name: "upper", Run: func(_ context.Context, in string) (string, error) {
		return strings.ToUpper(in), nil
	}}
	double := Strategy[string, string]{Name: "double", Run: func(_ context.Context, in string) (string, error) {
		return in + in, nil
	}}
	out, err := Best(context.Background(), "ab", []Strategy[string, string]{upper, double},
		func(s string) float64 { return float64(len(s)) }, 0)
	require.NoError(t, err)
	assert.Equal(t, "abab", out.Output)
}

func TestBestRunsInParallel(t *testing.T) {
	var running, peak atomic.Int32
	slow := func(name string) Strategy[string, int] {
		return Strategy[string, int]{Name: name, Run: func(ctx context.Context, _ string) (int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return 1, nil
		}}
	}
	_, err := Best(context.Background(), "", []Strategy[string, int]{slow("a"), slow("b"), slow("c")}, identity, 0)
	require.NoError(t, err)
	assert.Greater(t, peak.Load(), int32(1))
}

func TestBestStrategyError(t *testing.T) {
	boom := errors.New("boom")
	failing := Strategy[string, int]{Name: "bad", Run: func(context.Context, string) (int, error) { return 0, boom }}
	_, err := Best(context.Background(), "", []Strategy[string, int]{constant("ok", 1), failing}, identity, 0)
	assert.ErrorIs(t, err, boom)
}

func TestBestNoStrategies(t *testing.T) {
	_, err := Best[string, int](context.Background(), "", nil, identity, 0)
	assert.ErrorIs(t, err, ErrNoStrategies)
}
