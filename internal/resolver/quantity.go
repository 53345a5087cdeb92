package resolver

import (
	"github.com/wonny/rfqnorm/backend/internal/legs"
)

// ResolveQuantity reads a "10手" / "数量 10" cue; several values are absent
func ResolveQuantity(leg legs.Leg) Field[float64] {
	return singlePositive(leg.SpansOf(legs.KindQuantity))
}

// ResolveUnderlying reads a "标的价 3480" / "@3480" cue
func ResolveUnderlying(leg legs.Leg) Field[float64] {
	return singlePositive(leg.SpansOf(legs.KindUnderlying))
}

func singlePositive(spans []legs.Span) Field[float64] {
	var values distinct[float64]
	for _, sp := range spans {
		v, ok := parseNumber(sp.Group("value"))
		if !ok || v <= 0 {
			continue
		}
		values.add(v, sp.Text)
	}

	v, cue, ok := values.single()
	if !ok {
		return Absent[float64]()
	}
	return Resolved(v, Extracted, cue)
}
