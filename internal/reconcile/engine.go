// Package reconcile splits normalized records between the two parties and
// builds the baseline ledger: one row per person per payment, running
// balances and a zero-sum summary.
package reconcile

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/config"
	"github.com/cleared-dev/splitledger/internal/id"
	"github.com/cleared-dev/splitledger/internal/model"
	"github.com/cleared-dev/splitledger/internal/money"
	"github.com/cleared-dev/splitledger/internal/patterns"
)

// Parties is the party lookup the engine needs.
type Parties interface {
	Names() []string
	Resolve(name string) (string, bool)
	Counterpart(name string) (string, bool)
	Share(name string) decimal.Decimal
}

// Detector classifies descriptions into split policies.
type Detector interface {
	Detect(description, payer string) patterns.Decision
}

// Input is the engine's batch, grouped by source kind.
type Input struct {
	Expenses   []model.Record
	Ledger     []model.Record
	Rent       []model.Record
	Statements []model.Record
}

// Split groups records by kind, keeping their order.
func Split(records []model.Record) Input {
	var in Input
	for _, r := range records {
		switch r.Kind {
		case model.KindExpense:
			in.Expenses = append(in.Expenses, r)
		case model.KindLedger:
			in.Ledger = append(in.Ledger, r)
		case model.KindRent:
			in.Rent = append(in.Rent, r)
		default:
			in.Statements = append(in.Statements, r)
		}
	}
	return in
}

// Len returns the number of records in the batch.
func (in Input) Len() int {
	return len(in.Expenses) + len(in.Ledger) + len(in.Rent) + len(in.Statements)
}

// Engine computes allowed amounts and net effects. It holds no state between
// calls: the same input always yields the same ledger.
type Engine struct {
	cfg      config.Config
	parties  Parties
	detector Detector
	log      zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg config.Config, ps Parties, det Detector, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, parties: ps, detector: det, log: log}
}

// BuildBaseline explodes every record into per-person transactions, orders
// them by (date, sequence, leg), folds running balances and totals the
// summary. An imbalance beyond tolerance is logged and left visible in the
// summary.
func (e *Engine) BuildBaseline(in Input) (model.Summary, []model.Transaction) {
	txns := make([]model.Transaction, 0, 2*in.Len())
	for _, group := range [][]model.Record{in.Expenses, in.Ledger, in.Statements} {
		for _, r := range group {
			txns = append(txns, e.split(r)...)
		}
	}
	for _, r := range in.Rent {
		txns = append(txns, e.rent(r)...)
	}

	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Before(txns[j]) })
	RunningBalances(txns)

	summary := Summarize(txns, e.parties.Names(), e.cfg.ToleranceDecimal())
	if !summary.Balanced() {
		e.log.Warn().
			Str("total", summary.Total.StringFixed(2)).
			Str("tolerance", summary.Tolerance.String()).
			Msg("reconciliation imbalance")
	}
	e.log.Debug().Int("records", in.Len()).Int("transactions", len(txns)).Msg("baseline built")
	return summary, txns
}

// split handles a single-payer row.
func (e *Engine) split(r model.Record) []model.Transaction {
	payer, ok := e.parties.Resolve(r.Person)
	if !ok || !r.Amount.Valid {
		return []model.Transaction{e.unparsed(r)}
	}
	other, _ := e.parties.Counterpart(payer)
	paid := r.Amount.Decimal.Neg()

	dec := e.detector.Detect(r.Text(), payer)
	otherAllowed, basis := e.counterpartShare(r, dec, payer, other, paid)

	flags := append(append([]string(nil), r.Flags...), dec.Flags...)
	return e.legs(r, dec.Policy, flags, basis, payer, other, paid, otherAllowed)
}

// counterpartShare returns the counterpart's allowed amount and a short
// description of how it was derived.
func (e *Engine) counterpartShare(r model.Record, dec patterns.Decision, payer, other string, paid decimal.Decimal) (decimal.Decimal, string) {
	switch dec.Policy {
	case model.PolicyFullTo:
		basis := fmt.Sprintf("full_to(%s) via %s [%s]", dec.Target, dec.Rule, dec.Match)
		if dec.Target == payer {
			return decimal.Zero, basis
		}
		return paid, basis
	case model.PolicyDoubleCharge:
		return money.Cents(paid.Div(decimal.NewFromInt(2))), fmt.Sprintf("double_charge 50/50 [%s]", dec.Match)
	case model.PolicyNotShared:
		return decimal.Zero, fmt.Sprintf("not_shared via %s [%s]", dec.Rule, dec.Match)
	}

	switch r.Kind {
	case model.KindExpense:
		if r.Allowed.Valid {
			own := r.Allowed.Decimal
			if paid.IsNegative() {
				own = own.Neg()
			}
			return paid.Sub(own), fmt.Sprintf("standard: %s allowed %s per source", payer, own.StringFixed(2))
		}
		share := e.parties.Share(other)
		return money.Cents(paid.Mul(share)), fmt.Sprintf("standard: %s share %s%%", other, share.Mul(money.Hundred).String())
	case model.KindLedger:
		split := e.cfg.LedgerSplitDecimal()
		return money.Cents(paid.Mul(split)), fmt.Sprintf("standard: ledger split %s%%", split.Mul(money.Hundred).String())
	default:
		return decimal.Zero, "standard: statement row not shared"
	}
}

// legs emits the payer's row and the counterpart's synthetic row. The payer
// is allocated whatever the counterpart is not, so the two net effects always
// cancel exactly.
func (e *Engine) legs(r model.Record, policy model.Policy, flags []string, basis, payer, other string, paid, otherAllowed decimal.Decimal) []model.Transaction {
	payerAllowed := paid.Sub(otherAllowed)
	notes := fmt.Sprintf("%s; %s paid %s; allowed %s=%s %s=%s",
		basis, payer, paid.StringFixed(2),
		payer, payerAllowed.StringFixed(2), other, otherAllowed.StringFixed(2))

	base := model.Transaction{
		SourceFile:       r.SourceFile,
		Seq:              r.Seq,
		Date:             r.Date,
		Merchant:         r.Merchant,
		Description:      r.Description,
		Policy:           policy,
		PatternFlags:     flags,
		CalculationNotes: notes,
	}

	p := base
	p.RowID = id.FormatLegID(r.RowID, 0)
	p.Leg = 0
	p.Person = payer
	p.ActualAmount = decimal.NewNullDecimal(paid)
	p.AllowedAmount = decimal.NewNullDecimal(payerAllowed)
	p.NetEffect = decimal.NewNullDecimal(payerAllowed.Sub(paid))
	p.Extras = maps.Clone(r.Extras)

	c := base
	c.RowID = id.FormatLegID(r.RowID, 1)
	c.Leg = 1
	c.Person = other
	c.ActualAmount = decimal.NewNullDecimal(decimal.Zero)
	c.AllowedAmount = decimal.NewNullDecimal(otherAllowed)
	c.NetEffect = decimal.NewNullDecimal(otherAllowed)
	c.PatternFlags = append([]string(nil), flags...)
	c.Extras = maps.Clone(r.Extras)

	return []model.Transaction{p, c}
}

// unparsed keeps a row the engine cannot split. Its amounts stay null so it
// never moves a balance; the integrity checker reports it.
func (e *Engine) unparsed(r model.Record) model.Transaction {
	reasons := r.Flags
	if len(reasons) == 0 {
		reasons = []string{model.FlagUnknownPerson}
	}
	e.log.Debug().Str("row", r.RowID).Strs("flags", reasons).Msg("row not reconciled")
	return model.Transaction{
		SourceFile:       r.SourceFile,
		RowID:            id.FormatLegID(r.RowID, 0),
		Seq:              r.Seq,
		Person:           r.Person,
		Date:             r.Date,
		Merchant:         r.Merchant,
		Description:      r.Description,
		Policy:           model.PolicyUnparsed,
		PatternFlags:     append([]string(nil), reasons...),
		CalculationNotes: "not reconciled: " + strings.Join(reasons, ", "),
		Extras:           maps.Clone(r.Extras),
	}
}
