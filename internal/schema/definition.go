// Package schema holds the registry of known source file formats and matches
// an unknown file's header row against it.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/model"
)

// Canonical field names a source column can be renamed to.
const (
	FieldPerson        = "person"
	FieldDate          = "date"
	FieldMerchant      = "merchant"
	FieldDescription   = "description"
	FieldAmount        = "amount"
	FieldAllowedAmount = "allowed_amount"
	FieldCategory      = "category"
	FieldType          = "type"

	// Per-party rent columns: "share_pct.Ryan", "share_amount.Jordyn".
	SharePctPrefix    = "share_pct."
	ShareAmountPrefix = "share_amount."

	// PartyPlaceholder in a column_map entry expands to each party name.
	PartyPlaceholder = "{party}"
)

var canonicalFields = []string{
	FieldPerson, FieldDate, FieldMerchant, FieldDescription,
	FieldAmount, FieldAllowedAmount, FieldCategory, FieldType,
}

// IsCanonical reports whether name is a canonical field name.
func IsCanonical(name string) bool {
	if slices.Contains(canonicalFields, name) {
		return true
	}
	for _, prefix := range []string{SharePctPrefix, ShareAmountPrefix} {
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" {
			return true
		}
	}
	return false
}

// Definition describes one known source format. Definitions are created when
// the registry loads and are never modified afterwards.
type Definition struct {
	ID             string            `yaml:"id"`
	Kind           model.SourceKind  `yaml:"kind"`
	MatchFilename  string            `yaml:"match_filename,omitempty"`
	Signature      Signature         `yaml:"header_signature"`
	ColumnMap      map[string]string `yaml:"column_map,omitempty"`
	DerivedColumns []DerivedColumn   `yaml:"derived_columns,omitempty"`
	SignRules      []SignRule        `yaml:"sign_rules,omitempty"`
	DateFormats    []string          `yaml:"date_formats,omitempty"`
}

// Signature lists, per canonical field, the header aliases that satisfy it.
type Signature struct {
	Required map[string][]string `yaml:"required"`
	Optional map[string][]string `yaml:"optional,omitempty"`
}

// DerivedColumn synthesizes a canonical value from other columns. Exactly one
// of Concat or Coalesce is set. Sources name canonical fields or raw headers.
type DerivedColumn struct {
	Target    string   `yaml:"target"`
	Concat    []string `yaml:"concat,omitempty"`
	Separator string   `yaml:"separator,omitempty"`
	Coalesce  []string `yaml:"coalesce,omitempty"`
}

// SignAction is what a sign rule does to the amount.
type SignAction string

const (
	SignNegate   SignAction = "negate"
	SignNegative SignAction = "negative"
	SignPositive SignAction = "positive"
)

// SignRule rewrites the amount's sign when its predicate holds. A rule with no
// Column always applies.
type SignRule struct {
	Column  string     `yaml:"column,omitempty"`
	Matches string     `yaml:"matches,omitempty"`
	Action  SignAction `yaml:"action"`

	re *regexp.Regexp
}

// Applies reports whether the rule's predicate holds for the column value.
func (r SignRule) Applies(value string) bool {
	if r.Column == "" {
		return true
	}
	if r.re == nil {
		return false
	}
	return r.re.MatchString(value)
}

// Apply rewrites d per the rule's action.
func (r SignRule) Apply(d decimal.Decimal) decimal.Decimal {
	switch r.Action {
	case SignNegate:
		return d.Neg()
	case SignNegative:
		return d.Abs().Neg()
	case SignPositive:
		return d.Abs()
	}
	return d
}

// compile validates the definition and prepares its regexes.
func (d *Definition) compile() error {
	var errs []error

	if strings.TrimSpace(d.ID) == "" {
		errs = append(errs, errors.New("missing id"))
	}
	if !d.Kind.Valid() {
		errs = append(errs, fmt.Errorf("unknown kind %q", d.Kind))
	}
	if len(d.Signature.Required) == 0 {
		errs = append(errs, errors.New("header_signature.required is empty"))
	}
	for _, fields := range []map[string][]string{d.Signature.Required, d.Signature.Optional} {
		for canonical, aliases := range fields {
			if !IsCanonical(canonical) {
				errs = append(errs, fmt.Errorf("header_signature: unknown canonical field %q", canonical))
			}
			if len(aliases) == 0 {
				errs = append(errs, fmt.Errorf("header_signature: field %q has no aliases", canonical))
			}
		}
	}
	for src, dst := range d.ColumnMap {
		if !IsCanonical(strings.ReplaceAll(dst, PartyPlaceholder, "x")) {
			errs = append(errs, fmt.Errorf("column_map %q: unknown canonical field %q", src, dst))
		}
		if strings.Contains(dst, PartyPlaceholder) != strings.Contains(src, PartyPlaceholder) {
			errs = append(errs, fmt.Errorf("column_map %q: %s must appear on both sides", src, PartyPlaceholder))
		}
	}
	for i, dc := range d.DerivedColumns {
		if !IsCanonical(dc.Target) {
			errs = append(errs, fmt.Errorf("derived_columns[%d]: unknown target %q", i, dc.Target))
		}
		if (len(dc.Concat) == 0) == (len(dc.Coalesce) == 0) {
			errs = append(errs, fmt.Errorf("derived_columns[%d]: exactly one of concat or coalesce required", i))
		}
	}
	for i := range d.SignRules {
		r := &d.SignRules[i]
		switch r.Action {
		case SignNegate, SignNegative, SignPositive:
		default:
			errs = append(errs, fmt.Errorf("sign_rules[%d]: unknown action %q", i, r.Action))
		}
		if r.Column == "" {
			continue
		}
		re, err := regexp.Compile(r.Matches)
		if err != nil {
			errs = append(errs, fmt.Errorf("sign_rules[%d]: %w", i, err))
			continue
		}
		r.re = re
	}

	if len(errs) > 0 {
		return fmt.Errorf("schema %q: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

// expandedColumnMap returns the column map with party placeholders expanded.
func (d *Definition) expandedColumnMap(parties []string) map[string]string {
	out := make(map[string]string, len(d.ColumnMap))
	for src, dst := range d.ColumnMap {
		if !strings.Contains(src, PartyPlaceholder) {
			out[normalizeHeader(src)] = dst
			continue
		}
		for _, p := range parties {
			out[normalizeHeader(strings.ReplaceAll(src, PartyPlaceholder, p))] = strings.ReplaceAll(dst, PartyPlaceholder, p)
		}
	}
	return out
}
