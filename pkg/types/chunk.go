package types

import (
	"crypto/sha256"
	"fmt"
)

// ChunkType names one view of a record. Each record yields at most one chunk per type.
type ChunkType string

const (
	ChunkFeatures ChunkType = "features"
	ChunkUseCases ChunkType = "usecases"
	ChunkSpecs    ChunkType = "specs"
)

// AllChunkTypes lists chunk types in generation order
var AllChunkTypes = []ChunkType{ChunkFeatures, ChunkUseCases, ChunkSpecs}

// Valid reports whether t is a known chunk type
func (t ChunkType) Valid() bool {
	switch t {
	case ChunkFeatures, ChunkUseCases, ChunkSpecs:
		return true
	default:
		return false
	}
}

// ChunkRef identifies one chunk independently of any store
type ChunkRef struct {
	RecordID string
	Type     ChunkType
}

func (r ChunkRef) String() string {
	return fmt.Sprintf("%s#%s", r.RecordID, r.Type)
}

// Chunk is a retrievable text unit derived from a record
type Chunk struct {
	ID          int64 // storage row id, 0 until persisted
	RecordID    string
	ChunkType   ChunkType
	Content     string
	ContentHash [32]byte
}

// Ref returns the store-independent identity of the chunk
func (c *Chunk) Ref() ChunkRef {
	return ChunkRef{RecordID: c.RecordID, Type: c.ChunkType}
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate performs validation of the chunk
func (c *Chunk) Validate() error {
	if c.RecordID == "" {
		return ErrEmptyRecordID
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if !c.ChunkType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChunkType, c.ChunkType)
	}
	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return ErrMissingContentHash
	}
	return nil
}
