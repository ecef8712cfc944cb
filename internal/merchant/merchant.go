// Package merchant normalizes raw merchant text from bank exports into
// canonical names using an ordered table of regex rules.
package merchant

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CSV column names of the rules file.
const (
	ColPattern   = "pattern"
	ColCanonical = "canonical"
)

var (
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrInvalidName    = errors.New("invalid canonical name")
)

// Rule maps a regex over raw merchant text to a canonical name.
type Rule struct {
	Pattern   string
	Canonical string

	re *regexp.Regexp
}

// Rules is an ordered rule table. The first matching rule wins. A nil *Rules
// applies only the fallback cleanup.
type Rules struct {
	rules []Rule
}

// NewRules compiles rules in order.
func NewRules(rules ...Rule) (*Rules, error) {
	r := &Rules{}
	for i, rule := range rules {
		if err := Validate(rule.Pattern, rule.Canonical); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rule.re = compile(rule.Pattern)
		r.rules = append(r.rules, rule)
	}
	return r, nil
}

// flagGroup matches a leading flag group such as "(?i)" or "(?-i)".
var flagGroup = regexp.MustCompile(`^\(\?[imsU-]+\)`)

// compile matches case-insensitively unless the pattern sets its own flags.
func compile(pattern string) *regexp.Regexp {
	if !flagGroup.MatchString(pattern) {
		pattern = "(?i)" + pattern
	}
	return regexp.MustCompile(pattern)
}

// Parse reads a rules table: a "pattern,canonical" header then one rule per row.
func Parse(r io.Reader) (*Rules, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading merchant rules: %w", err)
	}
	if len(records) == 0 {
		return &Rules{}, nil
	}
	if !strings.EqualFold(records[0][0], ColPattern) || !strings.EqualFold(records[0][1], ColCanonical) {
		return nil, fmt.Errorf("merchant rules: header must be %s,%s", ColPattern, ColCanonical)
	}

	rules := make([]Rule, 0, len(records)-1)
	for _, rec := range records[1:] {
		rules = append(rules, Rule{Pattern: rec[0], Canonical: rec[1]})
	}
	return NewRules(rules...)
}

// Load reads a rules file. A missing file is an empty table.
func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Rules{}, nil
		}
		return nil, fmt.Errorf("opening merchant rules: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Len returns the number of rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Lookup returns the canonical name of the first matching rule.
func (r *Rules) Lookup(raw string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range r.rules {
		if rule.re.MatchString(raw) {
			return rule.Canonical, true
		}
	}
	return "", false
}

// Normalize returns the canonical merchant name for raw text, falling back to
// Clean when no rule matches.
func (r *Rules) Normalize(raw string) string {
	if name, ok := r.Lookup(raw); ok {
		return name
	}
	return Clean(raw)
}

// Clean strips diacritics, collapses whitespace and title-cases raw text.
func Clean(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	return cases.Title(language.English).String(s)
}

// Validate checks that pattern compiles and canonical can be stored as a
// single CSV field without quoting.
func Validate(pattern, canonical string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if strings.TrimSpace(canonical) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(canonical, ",\"\r\n\t") {
		return fmt.Errorf("%w: %q contains a delimiter character", ErrInvalidName, canonical)
	}
	return nil
}

// AddRule validates a rule and appends it to the rules file, writing the
// header first when the file is new or empty.
func AddRule(path, pattern, canonical string) error {
	if err := Validate(pattern, canonical); err != nil {
		return err
	}
	canonical = strings.TrimSpace(canonical)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening merchant rules: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat merchant rules: %w", err)
	}
	if info.Size() > 0 {
		if _, err := Parse(f); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := ensureTrailingNewline(f, info.Size()); err != nil {
			return err
		}
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write([]string{ColPattern, ColCanonical}); err != nil {
			return fmt.Errorf("writing merchant rules header: %w", err)
		}
	}
	if err := w.Write([]string{pattern, canonical}); err != nil {
		return fmt.Errorf("writing merchant rule: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing merchant rule: %w", err)
	}
	return nil
}

func ensureTrailingNewline(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("reading merchant rules: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return fmt.Errorf("writing merchant rules: %w", err)
	}
	return nil
}
