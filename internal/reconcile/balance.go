package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/model"
)

// RunningBalances sets each transaction's running balance: the cumulative
// net effect of its person over txns in their current order. Rows with a
// null net effect carry the balance unchanged.
func RunningBalances(txns []model.Transaction) {
	balance := make(map[string]decimal.Decimal)
	for i := range txns {
		t := &txns[i]
		b := balance[t.Person]
		if t.NetEffect.Valid {
			b = b.Add(t.NetEffect.Decimal)
			balance[t.Person] = b
		}
		t.RunningBalance = b
	}
}

// Summarize totals net effect per person. People listed in order appear
// first (even with no rows); anyone else follows in order of appearance.
func Summarize(txns []model.Transaction, order []string, tolerance decimal.Decimal) model.Summary {
	totals := make(map[string]decimal.Decimal)
	people := append([]string(nil), order...)
	seen := make(map[string]bool, len(order))
	for _, p := range order {
		seen[p] = true
	}

	s := model.Summary{Tolerance: tolerance}
	for _, t := range txns {
		if !t.NetEffect.Valid {
			continue
		}
		if !seen[t.Person] {
			seen[t.Person] = true
			people = append(people, t.Person)
		}
		totals[t.Person] = totals[t.Person].Add(t.NetEffect.Decimal)
		s.Total = s.Total.Add(t.NetEffect.Decimal)
	}
	for _, p := range people {
		s.People = append(s.People, model.PersonTotal{Person: p, NetOwed: totals[p]})
	}
	return s
}
