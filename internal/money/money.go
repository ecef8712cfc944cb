// Package money cleans currency strings and date tokens from spreadsheet and
// bank exports into decimal amounts and calendar dates.
package money

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty         = errors.New("empty value")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// Hundred is 100 as a decimal, used for percentage conversion.
var Hundred = decimal.NewFromInt(100)

// ParseAmount converts a currency string to a decimal.
//
// Accepted forms include "$1,234.56", "-$5.00", "(12.00)", "12.00-",
// "USD 7.10" and "1 234.50". Parentheses and a trailing minus mean negative.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			return r
		default:
			return -1
		}
	}, s)
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" || s == "-" || s == "." {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParsePercent converts "43%", "43", "0.43" or "43.5 %" into a fraction.
// Values greater than 1 are read as whole percentages.
func ParsePercent(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid percentage %q", raw)
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(1)) || strings.Contains(raw, "%") {
		d = d.Div(Hundred)
	}
	return d, nil
}

// Cents rounds d to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// dateFormats lists the day-level layouts seen in exports, US order first.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006 15:04",
}

// monthFormats lists month-level layouts used by the rent table.
var monthFormats = []string{
	"2006-01",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"Jan-06",
	"01/2006",
	"1/2006",
}

// ParseDate parses a day token. Preferred layouts are tried before the
// built-in list. Month-only tokens resolve to the first of the month.
func ParseDate(raw string, preferred ...string) (time.Time, error) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	for _, layouts := range [][]string{preferred, dateFormats, monthFormats} {
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return truncateDay(t), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date the way the ledger stores it; zero dates are empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// FormatAmount renders a nullable amount with two decimals; null is empty.
func FormatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
