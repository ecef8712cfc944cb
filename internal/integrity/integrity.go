// Package integrity verifies ledger invariants after reconciliation. Failed
// rows are marked and reported, never corrected.
package integrity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/id"
	"github.com/cleared-dev/splitledger/internal/model"
)

// Kind names the invariant a violation breaks.
type Kind string

const (
	KindIdentity       Kind = "identity"        // actual + net != allowed
	KindNullField      Kind = "null_field"      // a core amount is missing
	KindUnknownParty   Kind = "unknown_party"   // person is not a configured party
	KindPrecision      Kind = "precision"       // more than two decimal places
	KindGroupBalance   Kind = "group_balance"   // legs of one source row do not cancel
	KindRunningBalance Kind = "running_balance" // stored running balance disagrees with the fold
	KindZeroSum        Kind = "zero_sum"        // batch net effects do not sum to zero
)

// Violation describes a single invariant violation.
type Violation struct {
	Kind        Kind
	RowID       string
	Description string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s [%s]: %s", v.Kind, v.RowID, v.Description)
}

// PartyChecker tests whether a name is a configured party.
type PartyChecker interface {
	Exists(name string) bool
}

var hundred = decimal.NewFromInt(100)

// Check verifies every row and the batch. It returns a copy of txns with
// IntegrityCheck set on each row, plus all violations in row order followed
// by the batch-level ones.
func Check(txns []model.Transaction, tolerance decimal.Decimal, parties PartyChecker) ([]model.Transaction, []Violation) {
	out := make([]model.Transaction, len(txns))
	copy(out, txns)

	var errs []Violation
	failed := make(map[int]bool)
	fail := func(i int, v Violation) {
		errs = append(errs, v)
		failed[i] = true
	}

	for i, t := range out {
		if !t.Parsed() {
			fail(i, Violation{Kind: KindNullField, RowID: t.RowID, Description: nullFields(t)})
		}
		if parties != nil && !parties.Exists(t.Person) {
			fail(i, Violation{Kind: KindUnknownParty, RowID: t.RowID, Description: fmt.Sprintf("unknown party %q", t.Person)})
		}
		if !t.Parsed() {
			continue
		}

		diff := t.ActualAmount.Decimal.Add(t.NetEffect.Decimal).Sub(t.AllowedAmount.Decimal)
		if diff.Abs().GreaterThan(tolerance) {
			fail(i, Violation{
				Kind:  KindIdentity,
				RowID: t.RowID,
				Description: fmt.Sprintf("actual (%s) + net (%s) != allowed (%s)",
					t.ActualAmount.Decimal.StringFixed(2), t.NetEffect.Decimal.StringFixed(2), t.AllowedAmount.Decimal.StringFixed(2)),
			})
		}

		for _, f := range []struct {
			name string
			d    decimal.Decimal
		}{
			{"actual", t.ActualAmount.Decimal},
			{"allowed", t.AllowedAmount.Decimal},
			{"net", t.NetEffect.Decimal},
		} {
			if !f.d.Mul(hundred).Equal(f.d.Mul(hundred).Floor()) {
				fail(i, Violation{
					Kind:        KindPrecision,
					RowID:       t.RowID,
					Description: fmt.Sprintf("%s %s has more than 2 decimal places", f.name, f.d),
				})
			}
		}
	}

	groupErrs, groupFailed := checkGroups(out, tolerance)
	errs = append(errs, groupErrs...)

	for i := range out {
		out[i].IntegrityCheck = !failed[i] && !groupFailed[groupOf(out[i])]
	}

	if v, ok := checkZeroSum(out, tolerance); !ok {
		errs = append(errs, v)
	}
	return out, errs
}

// groupKey identifies the source row a leg came from.
type groupKey struct {
	source string
	row    string
}

func groupOf(t model.Transaction) groupKey {
	return groupKey{source: t.SourceFile, row: id.RowGroup(t.RowID)}
}

// checkGroups verifies that the legs exploded from one source row cancel.
func checkGroups(txns []model.Transaction, tolerance decimal.Decimal) ([]Violation, map[groupKey]bool) {
	sums := make(map[groupKey]decimal.Decimal)
	var order []groupKey
	for _, t := range txns {
		if !t.NetEffect.Valid {
			continue
		}
		g := groupOf(t)
		if _, seen := sums[g]; !seen {
			order = append(order, g)
		}
		sums[g] = sums[g].Add(t.NetEffect.Decimal)
	}

	var errs []Violation
	failed := make(map[groupKey]bool)
	for _, g := range order {
		if sums[g].Abs().GreaterThan(tolerance) {
			failed[g] = true
			errs = append(errs, Violation{
				Kind:        KindGroupBalance,
				RowID:       g.row,
				Description: fmt.Sprintf("legs net to %s", sums[g].StringFixed(2)),
			})
		}
	}
	return errs, failed
}

func checkZeroSum(txns []model.Transaction, tolerance decimal.Decimal) (Violation, bool) {
	total := decimal.Zero
	for _, t := range txns {
		if t.NetEffect.Valid {
			total = total.Add(t.NetEffect.Decimal)
		}
	}
	if total.Abs().GreaterThan(tolerance) {
		return Violation{
			Kind:        KindZeroSum,
			RowID:       "*",
			Description: fmt.Sprintf("net effects sum to %s, tolerance %s", total.StringFixed(2), tolerance),
		}, false
	}
	return Violation{}, true
}

// CheckRunningBalances recomputes each person's running balance over txns in
// order and reports rows whose stored balance differs.
func CheckRunningBalances(txns []model.Transaction, tolerance decimal.Decimal) []Violation {
	var errs []Violation
	balance := make(map[string]decimal.Decimal)
	for _, t := range txns {
		b := balance[t.Person]
		if t.NetEffect.Valid {
			b = b.Add(t.NetEffect.Decimal)
			balance[t.Person] = b
		}
		if b.Sub(t.RunningBalance).Abs().GreaterThan(tolerance) {
			errs = append(errs, Violation{
				Kind:        KindRunningBalance,
				RowID:       t.RowID,
				Description: fmt.Sprintf("running balance %s, expected %s", t.RunningBalance.StringFixed(2), b.StringFixed(2)),
			})
		}
	}
	return errs
}

func nullFields(t model.Transaction) string {
	var missing []string
	if !t.ActualAmount.Valid {
		missing = append(missing, "actual_amount")
	}
	if !t.AllowedAmount.Valid {
		missing = append(missing, "allowed_amount")
	}
	if !t.NetEffect.Valid {
		missing = append(missing, "net_effect")
	}
	return fmt.Sprintf("null %v", missing)
}
