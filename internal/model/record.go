package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind tells the engine how a source file's rows are split.
type SourceKind string

const (
	KindExpense   SourceKind = "expense"   // per-person expense history, explicit allowed amounts
	KindLedger    SourceKind = "ledger"    // ad-hoc shared ledger, fixed ledger split
	KindRent      SourceKind = "rent"      // monthly rent allocation table
	KindStatement SourceKind = "statement" // bank/aggregator export, not shared by default
)

// Valid reports whether k is a known kind.
func (k SourceKind) Valid() bool {
	switch k {
	case KindExpense, KindLedger, KindRent, KindStatement:
		return true
	}
	return false
}

// Row flags set by the transformer.
const (
	FlagInvalidDate   = "invalid_date"
	FlagInvalidAmount = "invalid_amount"
	FlagUnknownPerson = "unknown_person"
)

// Record is a source row after renaming and normalization, before the
// reconciliation engine has split it.
type Record struct {
	Kind        SourceKind
	SourceFile  string
	RowID       string
	Seq         int
	Person      string
	Date        time.Time // zero when unparsable
	Merchant    string
	Description string
	Category    string
	Amount      decimal.NullDecimal // outflow negative
	Allowed     decimal.NullDecimal // explicit share of the payer, when the source states one
	SharePct    map[string]decimal.Decimal
	ShareAmount map[string]decimal.Decimal
	Extras      map[string]string
	Flags       []string
}

// AddFlag appends flag once.
func (r *Record) AddFlag(flag string) {
	for _, f := range r.Flags {
		if f == flag {
			return
		}
	}
	r.Flags = append(r.Flags, flag)
}

// Text returns the free text pattern rules run over: the description, or the
// merchant when the description is empty.
func (r Record) Text() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Merchant
}

// RentAllocation is one month of the rent table.
type RentAllocation struct {
	Month       time.Time
	Gross       decimal.Decimal
	Payer       string
	SharePct    map[string]decimal.Decimal
	ShareAmount map[string]decimal.Decimal
}
