package lexical

import (
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// NewPool creates the worker pool used to shard scoring. One pool is shared
// by every query; it holds no per-query state. size <= 0 uses GOMAXPROCS.
func NewPool(size int) (*ants.Pool, error) {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring pool: %w", err)
	}
	return pool, nil
}
