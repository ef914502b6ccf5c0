package category

import (
	"strings"

	"github.com/dshills/productrank-mcp/internal/textnorm"
)

// Set is an ordered set of canonical category names. The zero value is empty.
type Set struct {
	names []string
}

// NewSet builds a set from names, dropping duplicates
func NewSet(names ...string) Set {
	return Set{names: textnorm.Unique(names)}
}

// Has reports membership
func (s Set) Has(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// Len returns the number of categories
func (s Set) Len() int { return len(s.names) }

// Empty reports whether no category was inferred
func (s Set) Empty() bool { return len(s.names) == 0 }

// Names returns a copy of the members in table order
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s Set) String() string {
	return "[" + strings.Join(s.names, ",") + "]"
}

// Infer returns every category with at least one keyword present in the
// query. The result follows table order and is empty when nothing matches.
func (t *Table) Infer(query string) Set {
	nq := textnorm.Normalize(query)
	if nq == "" {
		return Set{}
	}

	var names []string
	for _, e := range t.entries {
		for _, kw := range e.keywords {
			if textnorm.ContainsPhrase(nq, kw) {
				names = append(names, e.name)
				break
			}
		}
	}
	return Set{names: names}
}
