// Package legs partitions an inquiry into legs and pre-extracts the cue
// spans each leg carries.
package legs

// Kind identifies what a cue span holds
type Kind string

const (
	KindDate       Kind = "date"       // year?, month, day
	KindDuration   Kind = "duration"   // value, unit, half
	KindQuantity   Kind = "quantity"   // value
	KindUnderlying Kind = "underlying" // value
	KindStrike     Kind = "strike"     // value, cue | option
	KindMoneyness  Kind = "moneyness"  // class, magnitude?
	KindContract   Kind = "contract"   // product, digits
	KindProduct    Kind = "product"    // product
	KindMonth      Kind = "month"      // month
	KindNumber     Kind = "number"     // value
)

// Duration units carried in the "unit" group
const (
	UnitMonths  = "months"
	UnitDays    = "days"
	UnitWeeks   = "weeks"
	UnitTrading = "trading"
)

// Span is one recognized cue inside a leg's text (byte offsets into Leg.Text)
type Span struct {
	Kind   Kind
	Start  int
	End    int
	Text   string
	Groups map[string]string
}

// Group returns a named capture, or "" when absent
func (s Span) Group(name string) string {
	return s.Groups[name]
}

// Overlaps reports whether s intersects [start, end)
func (s Span) Overlaps(start, end int) bool {
	return s.Start < end && start < s.End
}

// Leg is the slice of an inquiry attributed to one quote.
// Text may carry a copied preamble, so Start/End locate the leg body
// in the source while span offsets refer to Text.
type Leg struct {
	Index int
	Text  string
	Start int
	End   int
	Spans []Span
}

// SpansOf returns the spans of the given kinds, in text order
func (l Leg) SpansOf(kinds ...Kind) []Span {
	var out []Span
	for _, s := range l.Spans {
		for _, k := range kinds {
			if s.Kind == k {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Has reports whether the leg carries at least one span of the given kinds
func (l Leg) Has(kinds ...Kind) bool {
	return len(l.SpansOf(kinds...)) > 0
}

// Covered reports whether [start, end) intersects a span of the given kinds
func (l Leg) Covered(start, end int, kinds ...Kind) bool {
	for _, s := range l.SpansOf(kinds...) {
		if s.Overlaps(start, end) {
			return true
		}
	}
	return false
}
