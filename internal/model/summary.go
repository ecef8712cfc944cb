package model

import "github.com/shopspring/decimal"

// PersonTotal is one row of the summary.
type PersonTotal struct {
	Person  string
	NetOwed decimal.Decimal // positive = owes the other party
}

// Summary totals net effect per person.
type Summary struct {
	People    []PersonTotal
	Total     decimal.Decimal
	Tolerance decimal.Decimal
}

// Balanced reports whether the grand total is within tolerance of zero.
func (s Summary) Balanced() bool {
	return s.Total.Abs().LessThanOrEqual(s.Tolerance)
}

// NetOwed returns the total for person, or zero.
func (s Summary) NetOwed(person string) decimal.Decimal {
	for _, p := range s.People {
		if p.Person == person {
			return p.NetOwed
		}
	}
	return decimal.Zero
}
