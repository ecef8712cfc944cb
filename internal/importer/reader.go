package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrEmptyFile is returned for a file with no rows at all.
var ErrEmptyFile = errors.New("file has no rows")

// FileError reports a single malformed input file. It is recoverable: the
// file is skipped and the rest of the batch continues.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Row is one CSV record with the physical line it started on.
type Row struct {
	Line  int
	Cells []string
}

// Blank reports whether every cell is empty or whitespace.
func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Cell returns cell i, or "" when the row is short.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// ReadFile reads every record of a CSV file. Ragged rows and stray quotes
// are tolerated; unreadable or non-UTF-8 files yield a *FileError.
func ReadFile(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	rows, err := ReadRows(bytes.NewReader(data))
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return rows, nil
}

// ReadRows reads CSV records from r.
func ReadRows(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, errors.New("not UTF-8 text")
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, Row{Line: line, Cells: rec})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// maxBannerRows bounds how far LocateHeader looks for the header.
const maxBannerRows = 10

// LocateHeader returns the index of the header row among the first
// maxBannerRows rows. The first non-blank row that accept takes is the
// header. Failing that, the first row whose first non-empty cell equals one
// of markers (case-insensitive) is, and failing that the first non-blank row.
// accept may be nil.
func LocateHeader(rows []Row, markers []string, accept func(cells []string) bool) int {
	want := make(map[string]bool, len(markers))
	for _, m := range markers {
		want[fold(m)] = true
	}

	first, marked := -1, -1
	for i, row := range rows {
		if i >= maxBannerRows {
			break
		}
		if row.Blank() {
			continue
		}
		if accept != nil && accept(row.Cells) {
			return i
		}
		if first < 0 {
			first = i
		}
		if marked < 0 && want[fold(firstCell(row.Cells))] {
			marked = i
		}
	}
	switch {
	case marked >= 0:
		return marked
	case first >= 0:
		return first
	}
	return 0
}

func firstCell(cells []string) string {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
