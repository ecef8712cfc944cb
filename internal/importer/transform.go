package importer

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/id"
	"github.com/cleared-dev/splitledger/internal/merchant"
	"github.com/cleared-dev/splitledger/internal/model"
	"github.com/cleared-dev/splitledger/internal/money"
	"github.com/cleared-dev/splitledger/internal/schema"
)

// MerchantNormalizer maps raw merchant text to a canonical name.
type MerchantNormalizer interface {
	Normalize(raw string) string
}

// PartyResolver maps names and aliases to canonical party names.
type PartyResolver interface {
	Resolve(name string) (string, bool)
	FromFilename(path string) (string, bool)
}

// TransformOptions carries the lookups the transformer needs.
type TransformOptions struct {
	SourceFile string
	Source     id.Source          // zero = derived from SourceFile
	Merchants  MerchantNormalizer // nil = fallback cleanup only
	Parties    PartyResolver      // nil = names kept verbatim
}

// ledgerFields are canonical fields that have their own ledger column. Other
// mapped values are also kept in extras.
var ledgerFields = map[string]bool{
	schema.FieldPerson:        true,
	schema.FieldDate:          true,
	schema.FieldMerchant:      true,
	schema.FieldDescription:   true,
	schema.FieldAmount:        true,
	schema.FieldAllowedAmount: true,
}

// Transform renames, derives and normalizes data rows into canonical records.
// Rows that fail to parse are kept with the bad field nulled and a flag set.
// Blank rows are skipped.
func Transform(rows []Row, header []string, match schema.MatchResult, opts TransformOptions) []model.Record {
	def := match.Schema
	src := opts.Source
	if src.Stem == "" {
		src = id.Sources([]string{opts.SourceFile})[0]
	}

	var records []model.Record
	for _, row := range rows {
		if row.Blank() {
			continue
		}
		fields, extras := rename(row, header, match.Columns)
		derive(def.DerivedColumns, fields, row, header)

		rec := model.Record{
			Kind:        def.Kind,
			SourceFile:  src.Name,
			RowID:       id.FormatRowID(src.Stem, row.Line),
			Description: clean(fields[schema.FieldDescription]),
			Category:    clean(fields[schema.FieldCategory]),
			Extras:      extras,
		}
		rec.Merchant = normalizeMerchant(opts.Merchants, fields[schema.FieldMerchant], rec.Description)
		resolvePerson(&rec, fields, match, opts)
		parseDate(&rec, fields, def)
		parseAmounts(&rec, fields, def, row, header)
		parseShares(&rec, fields)

		records = append(records, rec)
	}
	return records
}

// rename splits a row into canonical fields and extras. The first non-empty
// cell wins when two headers map to the same field; the loser goes to extras.
func rename(row Row, header []string, columns map[string]string) (map[string]string, map[string]string) {
	fields := make(map[string]string)
	extras := make(map[string]string)
	for i, h := range header {
		v := strings.TrimSpace(row.Cell(i))
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		canonical, mapped := columns[h]
		if mapped && fields[canonical] == "" {
			fields[canonical] = v
			if !ledgerFields[canonical] && v != "" {
				extras[name] = v
			}
			continue
		}
		if v != "" {
			extras[name] = v
		}
	}
	for i := len(header); i < len(row.Cells); i++ {
		if v := strings.TrimSpace(row.Cells[i]); v != "" {
			extras["column_"+strconv.Itoa(i+1)] = v
		}
	}
	if len(extras) == 0 {
		extras = nil
	}
	return fields, extras
}

// lookup resolves a derived-column source: a canonical field first, then a raw
// header (case-insensitive).
func lookup(name string, fields map[string]string, row Row, header []string) string {
	if v, ok := fields[name]; ok {
		return v
	}
	for i, h := range header {
		if fold(h) == fold(name) {
			return strings.TrimSpace(row.Cell(i))
		}
	}
	return ""
}

func derive(derived []schema.DerivedColumn, fields map[string]string, row Row, header []string) {
	for _, dc := range derived {
		switch {
		case len(dc.Concat) > 0:
			if fields[dc.Target] != "" {
				continue
			}
			var parts []string
			for _, src := range dc.Concat {
				if v := lookup(src, fields, row, header); v != "" {
					parts = append(parts, v)
				}
			}
			fields[dc.Target] = strings.Join(parts, dc.Separator)
		case len(dc.Coalesce) > 0:
			for _, src := range dc.Coalesce {
				if v := lookup(src, fields, row, header); v != "" {
					fields[dc.Target] = v
					break
				}
			}
		}
	}
}

func normalizeMerchant(m MerchantNormalizer, raw, description string) string {
	if raw == "" {
		raw = description
	}
	if m == nil {
		return merchant.Clean(raw)
	}
	return m.Normalize(raw)
}

func resolvePerson(rec *model.Record, fields map[string]string, match schema.MatchResult, opts TransformOptions) {
	raw := clean(fields[schema.FieldPerson])
	if opts.Parties == nil {
		rec.Person = raw
		return
	}
	if raw != "" {
		if name, ok := opts.Parties.Resolve(raw); ok {
			rec.Person = name
			return
		}
		rec.Person = raw
		rec.AddFlag(model.FlagUnknownPerson)
		return
	}
	if name, ok := opts.Parties.FromFilename(opts.SourceFile); ok {
		rec.Person = name
		return
	}
	// A rent row without a payer falls back to the configured payer.
	if match.Schema.Kind != model.KindRent {
		rec.AddFlag(model.FlagUnknownPerson)
	}
}

func parseDate(rec *model.Record, fields map[string]string, def *schema.Definition) {
	raw, present := fields[schema.FieldDate]
	if !present {
		return
	}
	d, err := money.ParseDate(raw, def.DateFormats...)
	if err != nil {
		rec.AddFlag(model.FlagInvalidDate)
		return
	}
	rec.Date = d
}

func parseAmounts(rec *model.Record, fields map[string]string, def *schema.Definition, row Row, header []string) {
	if raw, ok := fields[schema.FieldAmount]; !ok || raw == "" {
		rec.AddFlag(model.FlagInvalidAmount)
	} else if d, err := money.ParseAmount(raw); err != nil {
		rec.AddFlag(model.FlagInvalidAmount)
	} else {
		for _, rule := range def.SignRules {
			if rule.Applies(lookup(rule.Column, fields, row, header)) {
				d = rule.Apply(d)
				break
			}
		}
		rec.Amount = decimal.NewNullDecimal(d)
	}

	if raw := fields[schema.FieldAllowedAmount]; raw != "" {
		d, err := money.ParseAmount(raw)
		if err != nil {
			rec.AddFlag(model.FlagInvalidAmount)
			return
		}
		rec.Allowed = decimal.NewNullDecimal(d.Abs())
	}
}

func parseShares(rec *model.Record, fields map[string]string) {
	for name, raw := range fields {
		if raw == "" {
			continue
		}
		if party, ok := strings.CutPrefix(name, schema.SharePctPrefix); ok {
			pct, err := money.ParsePercent(raw)
			if err != nil {
				rec.AddFlag(model.FlagInvalidAmount)
				continue
			}
			if rec.SharePct == nil {
				rec.SharePct = make(map[string]decimal.Decimal)
			}
			rec.SharePct[party] = pct
		}
		if party, ok := strings.CutPrefix(name, schema.ShareAmountPrefix); ok {
			amt, err := money.ParseAmount(raw)
			if err != nil {
				rec.AddFlag(model.FlagInvalidAmount)
				continue
			}
			if rec.ShareAmount == nil {
				rec.ShareAmount = make(map[string]decimal.Decimal)
			}
			rec.ShareAmount[party] = amt.Abs()
		}
	}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
