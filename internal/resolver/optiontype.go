package resolver

import (
	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/legs"
)

// ResolveOptionType returns call (1) or put (2) from the closed keyword
// sets. Both present, or neither, is absent. Strike or offset signs are
// never used to guess.
func ResolveOptionType(leg legs.Leg, tables *keywords.Tables) Field[contracts.CallPut] {
	var values distinct[int]
	for _, m := range legs.FindOptionTypes(leg.Text, leg.Spans, tables) {
		values.add(m.Phrase.Value, leg.Text[m.Start:m.End])
	}

	v, cue, ok := values.single()
	if !ok {
		return Absent[contracts.CallPut]()
	}
	return Resolved(contracts.CallPut(v), Extracted, cue)
}
