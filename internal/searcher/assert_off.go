//go:build !rankassert

package searcher

const panicOnViolation = false
