package category

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/productrank-mcp/internal/textnorm"
)

//go:embed default.yaml
var defaultTableYAML []byte

// ErrInvalidTable is returned when a category table fails validation
var ErrInvalidTable = errors.New("invalid category table")

// Tiers holds the three category weight multipliers
type Tiers struct {
	Exact    float64 `yaml:"exact"`
	Related  float64 `yaml:"related"`
	Mismatch float64 `yaml:"mismatch"`
}

// Entry is one category as written in the table file
type Entry struct {
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	Keywords []string `yaml:"keywords"`
	Related  []string `yaml:"related"`
}

type tableFile struct {
	Tiers      Tiers   `yaml:"tiers"`
	Categories []Entry `yaml:"categories"`
}

type compiledEntry struct {
	name     string
	keywords []string // normalized
}

// Table is the loaded category map. A Table is read-only after loading
// and safe for concurrent use.
type Table struct {
	tiers   Tiers
	entries []compiledEntry
	order   map[string]int      // canonical name -> position
	labels  map[string]string   // normalized name or alias -> canonical name
	related map[string][]string // symmetric adjacency
}

// Default returns the built-in table
func Default() *Table {
	t, err := Parse(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in category table: %v", err))
	}
	return t
}

// LoadFile reads a table from a YAML file
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open category table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a table from YAML
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read category table: %w", err)
	}
	return Parse(data)
}

// Parse builds a table from YAML bytes
func Parse(data []byte) (*Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return New(tf.Tiers, tf.Categories)
}

// New validates entries and tiers and compiles them into a Table.
// Related links are made symmetric.
func New(tiers Tiers, entries []Entry) (*Table, error) {
	if tiers.Exact <= 0 || tiers.Related <= 0 || tiers.Mismatch <= 0 {
		return nil, fmt.Errorf("%w: tiers must be positive, got %+v", ErrInvalidTable, tiers)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidTable)
	}

	t := &Table{
		tiers:   tiers,
		entries: make([]compiledEntry, 0, len(entries)),
		order:   make(map[string]int, len(entries)),
		labels:  make(map[string]string),
		related: make(map[string][]string),
	}

	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: category %d has no name", ErrInvalidTable, i)
		}
		if _, dup := t.order[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidTable, e.Name)
		}
		t.order[e.Name] = i

		ce := compiledEntry{name: e.Name}
		for _, kw := range e.Keywords {
			n := textnorm.Normalize(kw)
			if n == "" {
				return nil, fmt.Errorf("%w: category %q has an empty keyword", ErrInvalidTable, e.Name)
			}
			ce.keywords = append(ce.keywords, n)
		}
		if len(ce.keywords) == 0 {
			return nil, fmt.Errorf("%w: category %q has no keywords", ErrInvalidTable, e.Name)
		}
		t.entries = append(t.entries, ce)

		for _, label := range append([]string{e.Name}, e.Aliases...) {
			n := textnorm.Normalize(label)
			if n == "" {
				continue
			}
			if prev, ok := t.labels[n]; ok && prev != e.Name {
				return nil, fmt.Errorf("%w: label %q maps to both %q and %q", ErrInvalidTable, label, prev, e.Name)
			}
			t.labels[n] = e.Name
		}
	}

	for _, e := range entries {
		for _, r := range e.Related {
			if _, ok := t.order[r]; !ok {
				return nil, fmt.Errorf("%w: category %q relates to unknown %q", ErrInvalidTable, e.Name, r)
			}
			if r == e.Name {
				continue
			}
			t.link(e.Name, r)
			t.link(r, e.Name)
		}
	}
	return t, nil
}

func (t *Table) link(a, b string) {
	for _, x := range t.related[a] {
		if x == b {
			return
		}
	}
	t.related[a] = append(t.related[a], b)
}

// Tiers returns the weight tiers
func (t *Table) Tiers() Tiers {
	return t.tiers
}

// Names returns the canonical category names in table order
func (t *Table) Names() []string {
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.name
	}
	return names
}

// Canonical maps a free-form record label to its canonical category.
// It returns "" when the label is empty or not in the table; such records
// are treated as having an unknown category.
func (t *Table) Canonical(label string) string {
	return t.labels[textnorm.Normalize(label)]
}

// Related reports whether a and b are adjacent in the table
func (t *Table) Related(a, b string) bool {
	for _, x := range t.related[a] {
		if x == b {
			return true
		}
	}
	return false
}
