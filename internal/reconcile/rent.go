package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/model"
	"github.com/cleared-dev/splitledger/internal/money"
)

// rentMerchant labels exploded rent rows that carry no merchant of their own.
const rentMerchant = "Rent"

// Allocation reads a rent record as a RentAllocation. The payer is the row's
// person, or the configured rent payer when the row names none.
func (e *Engine) Allocation(r model.Record) (model.RentAllocation, bool) {
	name := r.Person
	if name == "" {
		name = e.cfg.Rent.Payer
	}
	payer, ok := e.parties.Resolve(name)
	if !ok || !r.Amount.Valid {
		return model.RentAllocation{}, false
	}
	return model.RentAllocation{
		Month:       r.Date,
		Gross:       r.Amount.Decimal.Neg(),
		Payer:       payer,
		SharePct:    r.SharePct,
		ShareAmount: r.ShareAmount,
	}, true
}

// rent explodes one month into a row per party. The non-payer is allocated
// their fixed share of the gross, rounded to cents; the payer is allocated
// the rest. The non-payer's net effect is their share (they owe it) and the
// payer's is its negative (they are owed it).
func (e *Engine) rent(r model.Record) []model.Transaction {
	a, ok := e.Allocation(r)
	if !ok {
		if r.Person != "" {
			if _, known := e.parties.Resolve(r.Person); !known {
				r.AddFlag(model.FlagUnknownPerson)
			}
		}
		return []model.Transaction{e.unparsed(r)}
	}
	other, _ := e.parties.Counterpart(a.Payer)

	otherAllowed, basis := e.rentShare(a, other)
	if r.Merchant == "" {
		r.Merchant = rentMerchant
	}
	if r.Description == "" && !a.Month.IsZero() {
		r.Description = "Rent " + a.Month.Format("January 2006")
	}
	return e.legs(r, model.PolicyRent, append([]string(nil), r.Flags...), basis, a.Payer, other, a.Gross, otherAllowed)
}

// rentShare resolves the non-payer's allocation: an explicit amount, else
// their percentage, else the complement of the payer's percentage, else the
// configured share.
func (e *Engine) rentShare(a model.RentAllocation, other string) (decimal.Decimal, string) {
	if amt, ok := a.ShareAmount[other]; ok {
		if a.Gross.IsNegative() {
			amt = amt.Neg()
		}
		return amt, fmt.Sprintf("rent: %s amount %s", other, amt.StringFixed(2))
	}

	pct, ok := a.SharePct[other]
	switch {
	case ok:
	case hasKey(a.SharePct, a.Payer):
		pct = decimal.NewFromInt(1).Sub(a.SharePct[a.Payer])
	default:
		pct = e.parties.Share(other)
	}
	allowed := money.Cents(a.Gross.Mul(pct))
	return allowed, fmt.Sprintf("rent: %s %s%% of %s", other, pct.Mul(money.Hundred).String(), a.Gross.StringFixed(2))
}

func hasKey(m map[string]decimal.Decimal, k string) bool {
	_, ok := m[k]
	return ok
}
