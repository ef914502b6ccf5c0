// Package textnorm normalizes and tokenizes product text and queries.
//
// The same rules are used when building the lexical index, when inferring
// categories from a query and when matching category keywords, so a keyword
// and the text it is matched against always go through identical folding.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC, Unicode case folding and maps every rune that is
// not a letter or digit to a single space. Runs of spaces are collapsed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	// A Caser keeps state and must not be shared between goroutines.
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// IsIdeographic reports whether r belongs to a script written without
// spaces between words.
func IsIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// HasIdeographs reports whether s contains at least one ideographic rune
func HasIdeographs(s string) bool {
	for _, r := range s {
		if IsIdeographic(r) {
			return true
		}
	}
	return false
}

// Tokens splits s into index terms. Alphabetic and numeric runs become one
// term each. Ideographic runs emit every single character and every
// overlapping bigram, so both one-character and compound queries match.
// The output order follows the input and may contain duplicates.
func Tokens(s string) []string {
	s = Normalize(s)
	if s == "" {
		return nil
	}

	var out []string
	for _, field := range strings.Fields(s) {
		out = appendFieldTokens(out, field)
	}
	return out
}

func appendFieldTokens(out []string, field string) []string {
	var word []rune
	var ideo []rune

	flushWord := func() {
		if len(word) > 0 {
			out = append(out, string(word))
			word = word[:0]
		}
	}
	flushIdeo := func() {
		for i := range ideo {
			out = append(out, string(ideo[i]))
			if i+1 < len(ideo) {
				out = append(out, string(ideo[i:i+2]))
			}
		}
		ideo = ideo[:0]
	}

	for _, r := range field {
		if IsIdeographic(r) {
			flushWord()
			ideo = append(ideo, r)
			continue
		}
		flushIdeo()
		word = append(word, r)
	}
	flushWord()
	flushIdeo()
	return out
}

// Unique returns terms with duplicates removed, keeping first-seen order
func Unique(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ContainsPhrase reports whether the normalized keyword occurs in the
// normalized text. Keywords with ideographs match as substrings. Other
// keywords must line up with token boundaries, so "band" does not match
// "broadband".
func ContainsPhrase(normText, normKeyword string) bool {
	if normKeyword == "" {
		return false
	}
	if HasIdeographs(normKeyword) {
		return strings.Contains(normText, normKeyword)
	}
	return strings.Contains(" "+normText+" ", " "+normKeyword+" ")
}
