package entity

import (
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
)

// aggregables are nouns that commonly appear as aggregation measures or
// their grouping dimensions. The list is curated, not learned.
var aggregables = map[string]bool{
	"sales": true, "revenue": true, "orders": true, "order": true,
	"customers": true, "customer": true, "amount": true, "amounts": true,
	"price": true, "prices": true, "quantity": true, "quantities": true,
	"transactions": true, "transaction": true, "payments": true, "payment": true,
	"products": true, "product": true, "items": true, "item": true,
	"users": true, "user": true, "sessions": true, "session": true,
	"visits": true, "visit": true, "proposals": true, "proposal": true,
}

// filterByIntent narrows extracted candidates to the ones plausible for
// the classified intent. When the filter would drop everything, the
// unfiltered set is kept; a wrong filter must never erase the query.
func filterByIntent(candidates []core.Candidate, intent core.IntentType) ([]core.Candidate, bool) {
	if intent != core.IntentAggregation && intent != core.IntentTrend {
		return candidates, false
	}
	var kept []core.Candidate
	for _, c := range candidates {
		for _, word := range strings.Fields(strings.ToLower(c.Text)) {
			if aggregables[word] {
				kept = append(kept, c)
				break
			}
		}
	}
	if len(kept) == 0 {
		return candidates, false
	}
	return kept, true
}
