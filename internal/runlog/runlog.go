// Package runlog keeps logs/run-log.csv, an append-only record of every file
// each run touched.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/splitledger/internal/pipeline"
)

// Status values.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	File      string
	SchemaID  string
	Rows      int
	Flagged   int
	Status    string
	Details   string
}

// Header is the CSV header for run-log.csv.
const Header = "timestamp,run_id,file,schema_id,rows,flagged,status,details"

const (
	numFields   = 8
	logDir      = "logs"
	logFile     = "logs/run-log.csv"
	colTime     = 0
	colRunID    = 1
	colFile     = 2
	colSchemaID = 3
	colRows     = 4
	colFlagged  = 5
	colStatus   = 6
	colDetails  = 7
)

// FromReport builds one entry per file in the report.
func FromReport(r pipeline.Report, at time.Time) []Entry {
	entries := make([]Entry, 0, len(r.Files))
	for _, f := range r.Files {
		e := Entry{
			Timestamp: at,
			RunID:     r.RunID,
			File:      filepath.Base(f.Path),
			SchemaID:  f.SchemaID,
			Rows:      f.Rows,
			Flagged:   f.Flagged,
			Status:    StatusOK,
		}
		if f.Skipped() {
			e.Status = StatusSkipped
			e.Details = f.Err.Error()
		} else if len(f.Missing) > 0 {
			e.Details = "missing: " + strings.Join(f.Missing, " ")
		}
		entries = append(entries, e)
	}
	return entries
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTime] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colFile] = e.File
	row[colSchemaID] = e.SchemaID
	row[colRows] = strconv.Itoa(e.Rows)
	row[colFlagged] = strconv.Itoa(e.Flagged)
	row[colStatus] = e.Status
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTime])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}
	rows, err := strconv.Atoi(record[colRows])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing rows %q: %w", record[colRows], err)
	}
	flagged, err := strconv.Atoi(record[colFlagged])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing flagged %q: %w", record[colFlagged], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		File:      record[colFile],
		SchemaID:  record[colSchemaID],
		Rows:      rows,
		Flagged:   flagged,
		Status:    record[colStatus],
		Details:   record[colDetails],
	}, nil
}

// Path returns the run log location under root.
func Path(root string) string {
	return filepath.Join(root, logFile)
}

// Append writes entries to <root>/logs/run-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) (err error) {
	if err := os.MkdirAll(filepath.Join(root, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(root)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/run-log.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
