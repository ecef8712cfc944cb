// Package ledger reads and writes the reconciliation ledger and summary as
// CSV. Column order is fixed: spreadsheets and BI tools read these files.
package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/id"
	"github.com/cleared-dev/splitledger/internal/model"
	"github.com/cleared-dev/splitledger/internal/money"
)

// Header is the CSV header for ledger.csv.
const Header = "source_file,row_id,person,date,merchant,description,actual_amount,allowed_amount,net_effect,running_balance,pattern_flags,calculation_notes,integrity_check,extras"

// SummaryHeader is the CSV header for summary.csv.
const SummaryHeader = "person,net_owed"

// TotalRow labels the grand total line of the summary.
const TotalRow = "TOTAL"

// FlagSeparator joins pattern flags within one cell.
const FlagSeparator = ";"

const (
	numFields    = 14
	dateFormat   = "2006-01-02"
	colSource    = 0
	colRowID     = 1
	colPerson    = 2
	colDate      = 3
	colMerchant  = 4
	colDesc      = 5
	colActual    = 6
	colAllowed   = 7
	colNet       = 8
	colRunning   = 9
	colFlags     = 10
	colNotes     = 11
	colIntegrity = 12
	colExtras    = 13
)

// ReadTransactions reads all rows from a ledger.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if strings.Join(records[0], ",") != Header {
		return nil, fmt.Errorf("reading ledger CSV: unexpected header %q", strings.Join(records[0], ","))
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		t, err := Unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		t.Seq = i
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteTransactions writes txns to a ledger.csv writer (including header).
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		row, err := Marshal(t)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Marshal converts a Transaction to a CSV row. Null amounts are empty cells.
func Marshal(t model.Transaction) ([]string, error) {
	row := make([]string, numFields)
	row[colSource] = t.SourceFile
	row[colRowID] = t.RowID
	row[colPerson] = t.Person
	row[colDate] = money.FormatDate(t.Date)
	row[colMerchant] = t.Merchant
	row[colDesc] = t.Description
	row[colActual] = money.FormatAmount(t.ActualAmount)
	row[colAllowed] = money.FormatAmount(t.AllowedAmount)
	row[colNet] = money.FormatAmount(t.NetEffect)
	row[colRunning] = t.RunningBalance.StringFixed(2)
	row[colFlags] = strings.Join(t.PatternFlags, FlagSeparator)
	row[colNotes] = t.CalculationNotes
	row[colIntegrity] = strconv.FormatBool(t.IntegrityCheck)

	if len(t.Extras) > 0 {
		data, err := json.Marshal(t.Extras)
		if err != nil {
			return nil, fmt.Errorf("encoding extras: %w", err)
		}
		row[colExtras] = string(data)
	}
	return row, nil
}

// Unmarshal converts a CSV row to a Transaction.
func Unmarshal(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	t := model.Transaction{
		SourceFile:       record[colSource],
		RowID:            record[colRowID],
		Person:           record[colPerson],
		Merchant:         record[colMerchant],
		Description:      record[colDesc],
		CalculationNotes: record[colNotes],
	}
	if g := id.RowGroup(t.RowID); len(g) < len(t.RowID) {
		t.Leg = int(t.RowID[len(g)] - 'a')
	}

	if record[colDate] != "" {
		d, err := time.Parse(dateFormat, record[colDate])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
		}
		t.Date = d
	}

	var err error
	if t.ActualAmount, err = parseNull(record[colActual], "actual_amount"); err != nil {
		return model.Transaction{}, err
	}
	if t.AllowedAmount, err = parseNull(record[colAllowed], "allowed_amount"); err != nil {
		return model.Transaction{}, err
	}
	if t.NetEffect, err = parseNull(record[colNet], "net_effect"); err != nil {
		return model.Transaction{}, err
	}
	if t.RunningBalance, err = decimal.NewFromString(record[colRunning]); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing running_balance %q: %w", record[colRunning], err)
	}

	if record[colFlags] != "" {
		t.PatternFlags = strings.Split(record[colFlags], FlagSeparator)
	}
	if t.IntegrityCheck, err = strconv.ParseBool(record[colIntegrity]); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing integrity_check %q: %w", record[colIntegrity], err)
	}
	if record[colExtras] != "" {
		if err := json.Unmarshal([]byte(record[colExtras]), &t.Extras); err != nil {
			return model.Transaction{}, fmt.Errorf("parsing extras: %w", err)
		}
	}
	return t, nil
}

func parseNull(s, field string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// WriteSummary writes one row per person and a TOTAL row.
func WriteSummary(w io.Writer, s model.Summary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(SummaryHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, p := range s.People {
		if err := cw.Write([]string{p.Person, p.NetOwed.StringFixed(2)}); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}
	if err := cw.Write([]string{TotalRow, s.Total.StringFixed(2)}); err != nil {
		return fmt.Errorf("writing total row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ReadSummary reads a summary.csv reader. The TOTAL row sets Total.
func ReadSummary(r io.Reader) (model.Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	records, err := cr.ReadAll()
	if err != nil {
		return model.Summary{}, fmt.Errorf("reading summary CSV: %w", err)
	}
	var s model.Summary
	for i, rec := range records {
		if i == 0 {
			continue
		}
		d, err := decimal.NewFromString(rec[1])
		if err != nil {
			return model.Summary{}, fmt.Errorf("row %d: parsing net_owed %q: %w", i+1, rec[1], err)
		}
		if rec[0] == TotalRow {
			s.Total = d
			continue
		}
		s.People = append(s.People, model.PersonTotal{Person: rec[0], NetOwed: d})
	}
	return s, nil
}
