package indexer

import "sync/atomic"

// IndexLock is a non-blocking mutex: a second import fails fast instead of queueing
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire takes the lock if it is free
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether an import is running
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
