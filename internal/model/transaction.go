package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy names the split rule applied to a transaction.
type Policy string

const (
	PolicyStandard     Policy = "standard"
	PolicyFullTo       Policy = "full_to"
	PolicyDoubleCharge Policy = "double_charge"
	PolicyNotShared    Policy = "not_shared"
	PolicyRent         Policy = "rent"
	PolicyUnparsed     Policy = "unparsed"
)

// Transaction is one row of the reconciliation ledger (one person's side of a
// payment).
type Transaction struct {
	SourceFile       string
	RowID            string // source row ID plus leg suffix, e.g. "expenses-0004a"
	Seq              int    // input order across the batch
	Leg              int    // 0 = payer, 1 = counterpart
	Person           string
	Date             time.Time // zero when the source date could not be parsed
	Merchant         string
	Description      string
	ActualAmount     decimal.NullDecimal // what this person paid
	AllowedAmount    decimal.NullDecimal // this person's share
	NetEffect        decimal.NullDecimal // allowed - actual; positive = owes
	RunningBalance   decimal.Decimal
	Policy           Policy
	PatternFlags     []string
	CalculationNotes string
	IntegrityCheck   bool
	Extras           map[string]string
}

// Parsed reports whether all three core amounts are present.
func (t Transaction) Parsed() bool {
	return t.ActualAmount.Valid && t.AllowedAmount.Valid && t.NetEffect.Valid
}

// HasFlag reports whether flag is among the transaction's pattern flags.
func (t Transaction) HasFlag(flag string) bool {
	for _, f := range t.PatternFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Before orders transactions by date, then input sequence, then leg.
// Undated rows sort after dated ones.
func (t Transaction) Before(o Transaction) bool {
	switch {
	case t.Date.IsZero() != o.Date.IsZero():
		return !t.Date.IsZero()
	case !t.Date.Equal(o.Date):
		return t.Date.Before(o.Date)
	case t.Seq != o.Seq:
		return t.Seq < o.Seq
	default:
		return t.Leg < o.Leg
	}
}
