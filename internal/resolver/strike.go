package resolver

import (
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/legs"
)

// ResolveStrike returns at most one of an absolute strike and a moneyness
// offset.
//
// Absolute strike: a cued number (行权价 3500, 3500C); without one, a single
// leftover bare number. Offset: ATM = 0, ITM m = +m, OTM m = -m; ITM/OTM
// with no magnitude gives nothing. Several different values of one kind
// make that kind absent. When a strike is found the offset is dropped.
func ResolveStrike(leg legs.Leg) (strike, offset Field[float64]) {
	strike = resolveAbsoluteStrike(leg)
	if strike.Valid {
		return strike, Absent[float64]()
	}
	return strike, resolveOffset(leg)
}

func resolveAbsoluteStrike(leg legs.Leg) Field[float64] {
	candidates := leg.SpansOf(legs.KindStrike)
	if len(candidates) == 0 {
		candidates = leg.SpansOf(legs.KindNumber)
	}

	var values distinct[float64]
	for _, sp := range candidates {
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

func resolveOffset(leg legs.Leg) Field[float64] {
	var values distinct[float64]
	for _, sp := range leg.SpansOf(legs.KindMoneyness) {
		switch sp.Group("class") {
		case keywords.MoneynessATM:
			values.add(0, sp.Text)
		case keywords.MoneynessITM, keywords.MoneynessOTM:
			m, ok := parseNumber(sp.Group("magnitude"))
			if !ok {
				continue
			}
			if sp.Group("class") == keywords.MoneynessOTM {
				m = -m
			}
			values.add(m, sp.Text)
		}
	}

	v, cue, ok := values.single()
	if !ok {
		return Absent[float64]()
	}
	return Resolved(v, Extracted, cue)
}
