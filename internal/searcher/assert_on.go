//go:build rankassert

package searcher

// Built with -tags rankassert, invariant violations panic.
const panicOnViolation = true
