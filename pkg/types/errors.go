package types

import "errors"

// Domain errors for type validation
var (
	// Record and chunk errors
	ErrEmptyRecordID      = errors.New("record ID cannot be empty")
	ErrEmptyRecordName    = errors.New("record name cannot be empty")
	ErrEmptyContent       = errors.New("content cannot be empty")
	ErrInvalidChunkType   = errors.New("invalid chunk type")
	ErrMissingContentHash = errors.New("content hash must be computed")

	// Ranked result errors
	ErrInvalidRank            = errors.New("rank must be >= 1")
	ErrInvalidScore           = errors.New("score must be finite and non-negative")
	ErrInvalidNormalizedScore = errors.New("normalized score must be between 0 and 1")
	ErrInvalidCategoryWeight  = errors.New("category weight must be positive")
)
