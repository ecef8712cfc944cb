package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultMatcher() Matcher {
	return Matcher{Registry: Default(), MinRequired: 2, Parties: []string{"Ryan", "Jordyn"}}
}

func TestMatch_CaseAndWhitespaceInsensitive(t *testing.T) {
	m := defaultMatcher()

	a, err := m.Match([]string{"Date", "Description", "Amount"}, "export.csv")
	require.NoError(t, err)
	b, err := m.Match([]string{"date", "description", "amount"}, "export.csv")
	require.NoError(t, err)
	c, err := m.Match([]string{"  AMOUNT ", "\ufeffDate", "Description  "}, "export.csv")
	require.NoError(t, err)

	assert.Equal(t, "generic_bank", a.Schema.ID)
	assert.Equal(t, a.Schema.ID, b.Schema.ID)
	assert.Equal(t, a.Schema.ID, c.Schema.ID)
	assert.Equal(t, 3, c.Score.Required)
	assert.Equal(t, "amount", c.Columns["  AMOUNT "])
}

func TestMatch_NoOverlapIsFatal(t *testing.T) {
	m := defaultMatcher()

	_, err := m.Match([]string{"Foo", "Bar", "Baz"}, "mystery.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSchema)

	var fatal *FatalSchemaError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "mystery.csv", fatal.File)
	assert.Contains(t, err.Error(), "mystery.csv")
}

func TestMatch_BelowMinimumIsFatal(t *testing.T) {
	m := defaultMatcher()

	_, err := m.Match([]string{"Posting Date", "Balance"}, "odd.csv")
	var fatal *FatalSchemaError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, 1, fatal.BestScore.Required)
	assert.NotEmpty(t, fatal.BestID)
	assert.Contains(t, err.Error(), "need 2")
}

func TestMatch_KnownFormats(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		file    string
		want    string
	}{
		{"expense history", []string{"Name", "Date of Purchase", "Merchant", "Actual Amount", "Allowed Amount", "Description"}, "x.csv", "expense_history"},
		{"expense minimal", []string{"Name", "Date", "Allowed Amount"}, "x.csv", "expense_history"},
		{"shared ledger", []string{"Name", "Date", "Description", "Amount"}, "x.csv", "shared_ledger"},
		{"rent", []string{"Month", "Gross Total", "Ryan %", "Jordyn %", "Paid By"}, "x.csv", "rent_allocation"},
		{"apple", []string{"Transaction Date", "Clearing Date", "Description", "Merchant", "Category", "Type", "Amount (USD)", "Purchased By"}, "x.csv", "apple_card"},
		{"venmo", []string{"ID", "Datetime", "Type", "Status", "Note", "From", "To", "Amount (total)"}, "x.csv", "venmo"},
		{"chase", []string{"Details", "Posting Date", "Description", "Amount", "Type", "Balance", "Check or Slip #"}, "x.csv", "chase_checking"},
		{"aggregator", []string{"Date", "Description", "Original Description", "Amount", "Transaction Type", "Category", "Account Name"}, "x.csv", "aggregator_export"},
	}
	m := defaultMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Match(tt.headers, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Schema.ID)
		})
	}
}

func TestMatch_HeaderOrderIrrelevant(t *testing.T) {
	m := defaultMatcher()
	a, err := m.Match([]string{"Name", "Date", "Allowed Amount"}, "")
	require.NoError(t, err)
	b, err := m.Match([]string{"Allowed Amount", "Name", "Date"}, "")
	require.NoError(t, err)
	assert.Equal(t, a.Schema.ID, b.Schema.ID)
	assert.Equal(t, a.Score, b.Score)
}

func TestMatch_MissingAndExtra(t *testing.T) {
	m := defaultMatcher()
	res, err := m.Match([]string{"Name", "Date", "Allowed Amount", "Card"}, "")
	require.NoError(t, err)

	assert.Equal(t, "expense_history", res.Schema.ID)
	assert.Equal(t, Score{Required: 3}, res.Score)
	assert.Equal(t, []string{"amount", "description", "merchant"}, res.Missing)
	assert.Equal(t, []string{"Card"}, res.Extra)
	assert.Equal(t, "allowed_amount", res.Columns["Allowed Amount"])
}

func TestMatch_PartyColumns(t *testing.T) {
	m := defaultMatcher()
	res, err := m.Match([]string{"Month", "Gross Total", "Ryan's %", "Jordyn Amount", "Notes"}, "rent.csv")
	require.NoError(t, err)

	assert.Equal(t, "share_pct.Ryan", res.Columns["Ryan's %"])
	assert.Equal(t, "share_amount.Jordyn", res.Columns["Jordyn Amount"])
	assert.Equal(t, []string{"Notes"}, res.Extra)
	assert.True(t, res.Score.Filename)
}

func TestMatch_TiesGoToEarliest(t *testing.T) {
	reg, err := Parse([]byte(`
- id: first
  kind: statement
  header_signature: {required: {date: [date], amount: [amount]}}
- id: second
  kind: statement
  header_signature: {required: {date: [date], amount: [amount]}}
`))
	require.NoError(t, err)

	res, err := Matcher{Registry: reg, MinRequired: 1}.Match([]string{"Date", "Amount"}, "x.csv")
	require.NoError(t, err)
	assert.Equal(t, "first", res.Schema.ID)
}

func TestMatch_FilenameBreaksTie(t *testing.T) {
	reg, err := Parse([]byte(`
- id: first
  kind: statement
  header_signature: {required: {date: [date], amount: [amount]}}
- id: second
  kind: statement
  match_filename: "*card*"
  header_signature: {required: {date: [date], amount: [amount]}}
`))
	require.NoError(t, err)

	res, err := Matcher{Registry: reg, MinRequired: 1}.Match([]string{"Date", "Amount"}, "/tmp/My_Card_2024.csv")
	require.NoError(t, err)
	assert.Equal(t, "second", res.Schema.ID)
}

func TestMatch_RequiredOutranksOptional(t *testing.T) {
	reg, err := Parse([]byte(`
- id: wide
  kind: statement
  header_signature:
    required: {date: [date]}
    optional: {description: [description], category: [category], type: [type]}
- id: narrow
  kind: statement
  header_signature: {required: {date: [date], amount: [amount]}}
`))
	require.NoError(t, err)

	res, err := Matcher{Registry: reg, MinRequired: 1}.Match([]string{"Date", "Amount", "Description", "Category", "Type"}, "")
	require.NoError(t, err)
	assert.Equal(t, "narrow", res.Schema.ID)
}

func TestScoreBetter(t *testing.T) {
	assert.True(t, Score{Required: 2}.Better(Score{Required: 1, Optional: 5}))
	assert.True(t, Score{Required: 2, Optional: 1}.Better(Score{Required: 2}))
	assert.True(t, Score{Required: 2, Filename: true}.Better(Score{Required: 2}))
	assert.False(t, Score{Required: 2}.Better(Score{Required: 2}))
}
