package legs

import (
	"sort"

	"github.com/wonny/rfqnorm/backend/internal/keywords"
)

// FindOptionTypes returns call/put cues in text: table phrases plus
// standalone single letters (C, P). A letter counts only when it is not
// glued to another letter, not followed by a digit (C2605 is corn) and
// not inside a contract token.
func FindOptionTypes(text string, spans []Span, tables *keywords.Tables) []keywords.Match {
	inContract := func(start, end int) bool {
		for _, sp := range spans {
			if sp.Kind == KindContract && sp.Overlaps(start, end) {
				return true
			}
		}
		return false
	}

	out := tables.OptionType().FindAll(text, inContract)

	for i := 0; i < len(text); i++ {
		c := text[i]
		value, ok := tables.OptionLetter(c)
		if !ok {
			continue
		}
		if i > 0 && keywords.IsASCIILetter(text[i-1]) {
			continue
		}
		if i+1 < len(text) && (keywords.IsASCIILetter(text[i+1]) || keywords.IsDigit(text[i+1])) {
			continue
		}
		if inContract(i, i+1) || covered(out, i) {
			continue
		}
		class := "call"
		if value == keywords.ValuePut {
			class = "put"
		}
		out = append(out, keywords.Match{
			Start:  i,
			End:    i + 1,
			Phrase: keywords.Phrase{Text: string(c), Class: class, Value: value},
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// FindDirections returns direction cues, ignoring any phrase that falls
// inside an already extracted span
func FindDirections(text string, spans []Span, tables *keywords.Tables) []keywords.Match {
	return tables.Direction().FindAll(text, func(start, end int) bool {
		for _, sp := range spans {
			if sp.Overlaps(start, end) {
				return true
			}
		}
		return false
	})
}

func covered(matches []keywords.Match, i int) bool {
	for _, m := range matches {
		if i >= m.Start && i < m.End {
			return true
		}
	}
	return false
}
