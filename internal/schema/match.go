package schema

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSchema is wrapped by FatalSchemaError.
var ErrNoSchema = errors.New("no matching schema")

// FatalSchemaError reports a file whose headers match no registered schema
// well enough to trust. Processing must stop: guessing a mapping risks
// reading the wrong column as money.
type FatalSchemaError struct {
	File      string
	Headers   []string
	BestID    string
	BestScore Score
	Minimum   int
}

func (e *FatalSchemaError) Error() string {
	if e.BestID == "" || e.BestScore.Required == 0 {
		return fmt.Sprintf("%s: no schema shares a required field with headers %q", e.File, e.Headers)
	}
	return fmt.Sprintf("%s: best schema %q matched %d required fields, need %d (headers %q)",
		e.File, e.BestID, e.BestScore.Required, e.Minimum, e.Headers)
}

func (e *FatalSchemaError) Unwrap() error { return ErrNoSchema }

// Score ranks a definition against a header row. Fields compare in order:
// required hits, optional hits, filename hint.
type Score struct {
	Required int
	Optional int
	Filename bool
}

// Better reports whether s strictly outranks o.
func (s Score) Better(o Score) bool {
	if s.Required != o.Required {
		return s.Required > o.Required
	}
	if s.Optional != o.Optional {
		return s.Optional > o.Optional
	}
	return s.Filename && !o.Filename
}

// MatchResult is the outcome of matching one file.
type MatchResult struct {
	Schema  *Definition
	Score   Score
	Missing []string          // canonical fields with no header present, required first
	Extra   []string          // headers not mapped to any canonical field
	Columns map[string]string // source header as written -> canonical field
}

// Matcher scores header rows against a registry.
type Matcher struct {
	Registry    *Registry
	MinRequired int
	Parties     []string // expands {party} column_map entries
}

// Match picks the best definition for a header row. Header case, surrounding
// whitespace and order do not matter.
func (m Matcher) Match(headers []string, filename string) (MatchResult, error) {
	index := make(map[string]string, len(headers)) // normalized -> as written
	for _, h := range headers {
		n := normalizeHeader(h)
		if n == "" {
			continue
		}
		if _, dup := index[n]; !dup {
			index[n] = h
		}
	}

	var best MatchResult
	for _, def := range m.Registry.All() {
		res := m.score(def, index, filename)
		if best.Schema == nil || res.Score.Better(best.Score) {
			best = res
		}
	}

	minimum := max(m.MinRequired, 1)
	if best.Schema == nil || best.Score.Required < minimum {
		err := &FatalSchemaError{File: filename, Headers: headers, Minimum: minimum}
		if best.Schema != nil {
			err.BestID = best.Schema.ID
			err.BestScore = best.Score
		}
		return MatchResult{}, err
	}

	for _, h := range headers {
		if normalizeHeader(h) == "" {
			continue
		}
		if _, ok := best.Columns[h]; !ok {
			best.Extra = append(best.Extra, h)
		}
	}
	return best, nil
}

func (m Matcher) score(def *Definition, index map[string]string, filename string) MatchResult {
	res := MatchResult{Schema: def, Columns: make(map[string]string)}
	claimed := make(map[string]bool)

	claim := func(fields map[string][]string) (hits int, missing []string) {
		for _, canonical := range sortedKeys(fields) {
			found := false
			for _, alias := range fields[canonical] {
				n := normalizeHeader(alias)
				if h, ok := index[n]; ok && !claimed[n] {
					claimed[n] = true
					res.Columns[h] = canonical
					found = true
					break
				}
			}
			if found {
				hits++
			} else {
				missing = append(missing, canonical)
			}
		}
		return hits, missing
	}

	var missReq, missOpt []string
	res.Score.Required, missReq = claim(def.Signature.Required)
	res.Score.Optional, missOpt = claim(def.Signature.Optional)
	res.Missing = append(missReq, missOpt...)

	for n, canonical := range def.expandedColumnMap(m.Parties) {
		if h, ok := index[n]; ok {
			res.Columns[h] = canonical
		}
	}

	if def.MatchFilename != "" && filename != "" {
		ok, err := filepath.Match(strings.ToLower(def.MatchFilename), strings.ToLower(filepath.Base(filename)))
		res.Score.Filename = err == nil && ok
	}
	return res
}

// normalizeHeader lowercases, strips a BOM, trims, collapses inner whitespace
// and treats underscores as spaces.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
