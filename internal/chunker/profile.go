package chunker

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/productrank-mcp/internal/textnorm"
)

//go:embed profile.yaml
var defaultProfileYAML []byte

// ErrInvalidProfile is returned for profiles that cannot drive chunking
var ErrInvalidProfile = errors.New("invalid chunk profile")

// Labels are the field captions written into chunk text
type Labels struct {
	Name        string `yaml:"name"`
	ID          string `yaml:"id"`
	Category    string `yaml:"category"`
	Features    string `yaml:"features"`
	Price       string `yaml:"price"`
	Product     string `yaml:"product"`
	Description string `yaml:"description"`
	UseCases    string `yaml:"usecases"`
	Tags        string `yaml:"tags"`
	Details     string `yaml:"details"`
}

// TagRule attaches Tag when any of Terms occurs in the record text
type TagRule struct {
	Tag   string   `yaml:"tag"`
	Terms []string `yaml:"terms"`
}

// UseCaseRule contributes Cases when the record's category label contains one
// of Categories or its text contains one of Terms
type UseCaseRule struct {
	Categories []string `yaml:"categories"`
	Terms      []string `yaml:"terms"`
	Cases      []string `yaml:"cases"`
}

// Profile controls the text of generated chunks
type Profile struct {
	Labels   Labels        `yaml:"labels"`
	Tags     []TagRule     `yaml:"tags"`
	UseCases []UseCaseRule `yaml:"usecases"`
	Defaults []string      `yaml:"defaults"`
}

// DefaultProfile returns the built-in profile
func DefaultProfile() *Profile {
	p, err := ParseProfile(defaultProfileYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in chunk profile: %v", err))
	}
	return p
}

// LoadProfile reads a profile from a YAML file
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile. Match terms are
// normalized once here.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) compile() error {
	if len(p.Defaults) == 0 {
		return fmt.Errorf("%w: no default use cases", ErrInvalidProfile)
	}
	for i := range p.Tags {
		r := &p.Tags[i]
		if strings.TrimSpace(r.Tag) == "" || len(r.Terms) == 0 {
			return fmt.Errorf("%w: tag rule %d needs a tag and terms", ErrInvalidProfile, i)
		}
		r.Terms = normalizeTerms(r.Terms)
	}
	for i := range p.UseCases {
		r := &p.UseCases[i]
		if len(r.Cases) == 0 || (len(r.Categories) == 0 && len(r.Terms) == 0) {
			return fmt.Errorf("%w: use-case rule %d needs cases and a trigger", ErrInvalidProfile, i)
		}
		r.Categories = normalizeTerms(r.Categories)
		r.Terms = normalizeTerms(r.Terms)
	}
	return nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := textnorm.Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
