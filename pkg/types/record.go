package types

import (
	"crypto/sha256"
	"strings"
)

// Record is one catalog product. Records are immutable once loaded.
type Record struct {
	ID          string
	Name        string
	Description string
	Category    string // free-form label; may be empty or unmapped
	Features    []string
	Price       string // display only
}

// Validate checks that the record can be chunked and indexed
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyRecordID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRecordName
	}
	return nil
}

// ContentHash hashes every field that contributes to chunk text.
// Two records with the same hash produce identical chunks.
func (r *Record) ContentHash() [32]byte {
	var b strings.Builder
	for _, s := range []string{r.ID, r.Name, r.Description, r.Category, r.Price} {
		b.WriteString(s)
		b.WriteByte(0)
	}
	for _, f := range r.Features {
		b.WriteString(f)
		b.WriteByte(0)
	}
	return sha256.Sum256([]byte(b.String()))
}
