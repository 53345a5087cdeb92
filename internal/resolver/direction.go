package resolver

import (
	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/legs"
)

// ResolveDirection maps direction cues to the customer's side.
//
// Cues carry a precedence rank from the tables (direct perspective before
// counterparty perspective before bare verbs). Only the best-ranked class
// present is consulted; if it holds both directions the result is absent.
// Counterparty phrases are already stored flipped ("we sell" -> 1).
func ResolveDirection(leg legs.Leg, tables *keywords.Tables) Field[contracts.BuySell] {
	best := 0
	var values distinct[int]

	for _, m := range legs.FindDirections(leg.Text, leg.Spans, tables) {
		switch {
		case best == 0 || m.Phrase.Rank < best:
			best = m.Phrase.Rank
			values = distinct[int]{}
			values.add(m.Phrase.Value, leg.Text[m.Start:m.End])
		case m.Phrase.Rank == best:
			values.add(m.Phrase.Value, leg.Text[m.Start:m.End])
		}
	}

	v, cue, ok := values.single()
	if !ok {
		return Absent[contracts.BuySell]()
	}
	return Resolved(contracts.BuySell(v), Extracted, cue)
}
