package money

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"30", "30.00"},
		{"$1,234.56", "1234.56"},
		{"-$5.00", "-5.00"},
		{"(12.00)", "-12.00"},
		{"($12.50)", "-12.50"},
		{"12.00-", "-12.00"},
		{"USD 7.10", "7.10"},
		{" 1 234.50 ", "1234.50"},
		{"+4", "4.00"},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got.StringFixed(2), "ParseAmount(%q)", tt.in)
	}
}

func TestParseAmount_Errors(t *testing.T) {
	_, err := ParseAmount("")
	assert.ErrorIs(t, err, ErrEmpty)

	for _, in := range []string{"abc", "$", "1.2.3", "--5"} {
		_, err := ParseAmount(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", in)
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"43%", "0.43"},
		{"43", "0.43"},
		{"0.57", "0.57"},
		{"57.5 %", "0.575"},
		{"100", "1"},
	}
	for _, tt := range tests {
		got, err := ParsePercent(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "ParsePercent(%q) = %s", tt.in, got)
	}

	_, err := ParsePercent("lots")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-07", "03/07/2024", "3/7/2024", "3/7/24", "Mar 7, 2024", "7 Mar 2024", "2024-03-07 14:22:01"} {
		got, err := ParseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, want.Equal(got), "ParseDate(%q) = %s", in, got)
	}
}

func TestParseDate_Month(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01", "Jan 2024", "January 2024", "01/2024"} {
		got, err := ParseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, want.Equal(got), "ParseDate(%q) = %s", in, got)
	}
}

func TestParseDate_Preferred(t *testing.T) {
	// Day-first layout wins when preferred.
	got, err := ParseDate("07/03/2024", "02/01/2006")
	require.NoError(t, err)
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 7, got.Day())
}

func TestParseDate_Errors(t *testing.T) {
	_, err := ParseDate("  ")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ParseDate("not a date")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", FormatDate(time.Time{}))
	assert.Equal(t, "2024-01-05", FormatDate(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, "", FormatAmount(decimal.NullDecimal{}))
	assert.Equal(t, "-4.50", FormatAmount(decimal.NewNullDecimal(decimal.RequireFromString("-4.5"))))
}

func TestCents(t *testing.T) {
	assert.Equal(t, "430.00", Cents(decimal.NewFromInt(1000).Mul(decimal.RequireFromString("0.43"))).StringFixed(2))
	assert.Equal(t, "0.01", Cents(decimal.RequireFromString("0.005")).StringFixed(2))
}
