package keywords

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Phrase is one table entry: the literal text plus the category it votes for
type Phrase struct {
	Text  string
	Class string
	Rank  int
	Value int
}

// Match is a phrase occurrence inside a text, as byte offsets
type Match struct {
	Start  int
	End    int
	Phrase Phrase
}

// Matcher finds table phrases leftmost-longest, case-insensitively for ASCII.
// ASCII-lettered phrase edges must sit on a letter boundary so that "bid"
// never fires inside "forbid".
type Matcher struct {
	phrases []Phrase
	lowered []string
}

// NewMatcher builds a matcher; longer phrases are tried first
func NewMatcher(phrases []Phrase) *Matcher {
	sorted := make([]Phrase, 0, len(phrases))
	for _, p := range phrases {
		if p.Text != "" {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Text) > len(sorted[j].Text)
	})

	lowered := make([]string, len(sorted))
	for i, p := range sorted {
		lowered[i] = ASCIILower(p.Text)
	}
	return &Matcher{phrases: sorted, lowered: lowered}
}

// FindAll scans text once. skip, when non-nil, vetoes a candidate range
// (used to hide spans already claimed by another cue kind).
func (m *Matcher) FindAll(text string, skip func(start, end int) bool) []Match {
	if m == nil || len(m.phrases) == 0 {
		return nil
	}

	lower := ASCIILower(text)
	var out []Match

	for i := 0; i < len(lower); {
		matched := false
		for k, p := range m.lowered {
			if !strings.HasPrefix(lower[i:], p) {
				continue
			}
			end := i + len(p)
			if !onLetterBoundary(lower, i, end, p) {
				continue
			}
			if skip != nil && skip(i, end) {
				continue
			}
			out = append(out, Match{Start: i, End: end, Phrase: m.phrases[k]})
			i = end
			matched = true
			break
		}
		if !matched {
			_, size := utf8.DecodeRuneInString(lower[i:])
			i += size
		}
	}

	return out
}

// Contains reports whether any phrase occurs in text
func (m *Matcher) Contains(text string) bool {
	return len(m.FindAll(text, nil)) > 0
}

// Phrases returns the phrases, longest first
func (m *Matcher) Phrases() []Phrase {
	if m == nil {
		return nil
	}
	return append([]Phrase(nil), m.phrases...)
}

// Len returns the number of phrases
func (m *Matcher) Len() int {
	return len(m.phrases)
}

// ASCIILower lowercases ASCII letters only, so byte offsets stay aligned
// with the original string.
func ASCIILower(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}

// IsASCIILetter reports whether c is a-z or A-Z
func IsASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsDigit reports whether c is 0-9
func IsDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func onLetterBoundary(s string, start, end int, phrase string) bool {
	if IsASCIILetter(phrase[0]) && start > 0 && IsASCIILetter(s[start-1]) {
		return false
	}
	if IsASCIILetter(phrase[len(phrase)-1]) && end < len(s) && IsASCIILetter(s[end]) {
		return false
	}
	return true
}
