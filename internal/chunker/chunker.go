package chunker

import (
	"fmt"
	"strings"

	"github.com/dshills/productrank-mcp/internal/textnorm"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// Chunker turns catalog records into searchable chunks
type Chunker struct {
	profile *Profile
}

// New creates a Chunker with the built-in profile
func New() *Chunker {
	return &Chunker{profile: DefaultProfile()}
}

// NewWithProfile creates a Chunker with a custom profile
func NewWithProfile(p *Profile) *Chunker {
	return &Chunker{profile: p}
}

// ChunkRecord returns one chunk per chunk type, in types.AllChunkTypes order
func (c *Chunker) ChunkRecord(rec *types.Record) ([]*types.Chunk, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("cannot chunk record: %w", err)
	}

	chunks := make([]*types.Chunk, 0, len(types.AllChunkTypes))
	for _, ct := range types.AllChunkTypes {
		chunk := &types.Chunk{
			RecordID:  rec.ID,
			ChunkType: ct,
			Content:   c.render(rec, ct),
		}
		chunk.ComputeContentHash()
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (c *Chunker) render(rec *types.Record, ct types.ChunkType) string {
	switch ct {
	case types.ChunkFeatures:
		return c.featuresText(rec)
	case types.ChunkUseCases:
		return c.useCasesText(rec)
	default:
		return c.specsText(rec)
	}
}

func (c *Chunker) featuresText(rec *types.Record) string {
	l := c.profile.Labels
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", l.Name, rec.Name)
	fmt.Fprintf(&b, "%s: %s\n", l.ID, rec.ID)
	fmt.Fprintf(&b, "%s: %s\n", l.Category, rec.Category)
	fmt.Fprintf(&b, "%s: %s\n", l.Features, strings.Join(rec.Features, ", "))
	if rec.Price != "" {
		fmt.Fprintf(&b, "%s: %s", l.Price, rec.Price)
	}
	return b.String()
}

func (c *Chunker) useCasesText(rec *types.Record) string {
	l := c.profile.Labels
	var b strings.Builder
	fmt.Fprintf(&b, "【%s】\n\n", rec.Name)
	fmt.Fprintf(&b, "%s：%s\n\n", l.Description, rec.Description)
	fmt.Fprintf(&b, "%s：\n", l.UseCases)
	for i, uc := range c.UseCases(rec) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, uc)
	}
	return b.String()
}

func (c *Chunker) specsText(rec *types.Record) string {
	l := c.profile.Labels
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", l.Product, rec.Name)
	fmt.Fprintf(&b, "%s: %s\n", l.Tags, strings.Join(c.FeatureTags(rec), ", "))
	fmt.Fprintf(&b, "\n%s：\n", l.Details)
	for _, f := range rec.Features {
		fmt.Fprintf(&b, "• %s\n", f)
	}
	return b.String()
}

// FeatureTags returns the profile tags whose terms occur in the record's
// name, category, description or features
func (c *Chunker) FeatureTags(rec *types.Record) []string {
	text := textnorm.Normalize(strings.Join([]string{
		rec.Name, rec.Category, rec.Description, strings.Join(rec.Features, " "),
	}, " "))

	tags := make([]string, 0)
	for _, r := range c.profile.Tags {
		if containsAny(text, r.Terms) {
			tags = append(tags, r.Tag)
		}
	}
	return tags
}

// UseCases returns the use cases of every matching rule in profile order,
// or the profile defaults when none match
func (c *Chunker) UseCases(rec *types.Record) []string {
	category := textnorm.Normalize(rec.Category)
	text := textnorm.Normalize(rec.Name + " " + rec.Category + " " + rec.Description)

	cases := make([]string, 0)
	for _, r := range c.profile.UseCases {
		if containsAny(category, r.Categories) || containsAny(text, r.Terms) {
			cases = append(cases, r.Cases...)
		}
	}
	if len(cases) == 0 {
		return append(cases, c.profile.Defaults...)
	}
	return cases
}
