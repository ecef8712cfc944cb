package ledger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/splitledger/internal/model"
)

func sampleTransactions() []model.Transaction {
	nd := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }
	return []model.Transaction{
		{
			SourceFile:       "ledger.csv",
			RowID:            "ledger-0002a",
			Person:           "Ryan",
			Date:             time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			Merchant:         "Shell",
			Description:      "Toll 15 (2x Ryan), bridge",
			ActualAmount:     nd("50"),
			AllowedAmount:    nd("50"),
			NetEffect:        nd("0"),
			RunningBalance:   decimal.Zero,
			PatternFlags:     []string{"full_to_multiplier", "not_shared_cashback"},
			CalculationNotes: "full_to(Ryan) via full_to_multiplier [2x Ryan]",
			IntegrityCheck:   true,
			Extras:           map[string]string{"Card": "Visa", "Account": "Joint \"main\""},
		},
		{
			SourceFile:     "expenses.csv",
			RowID:          "expenses-0006a",
			Person:         "Sam",
			Merchant:       "Target",
			RunningBalance: decimal.RequireFromString("-12.5"),
		},
	}
}

func TestWriteTransactions_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, sampleTransactions()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t,
		`ledger.csv,ledger-0002a,Ryan,2024-01-10,Shell,"Toll 15 (2x Ryan), bridge",50.00,50.00,0.00,0.00,full_to_multiplier;not_shared_cashback,full_to(Ryan) via full_to_multiplier [2x Ryan],true,"{""Account"":""Joint \""main\"""",""Card"":""Visa""}"`,
		lines[1])
	assert.Equal(t, "expenses.csv,expenses-0006a,Sam,,Target,,,,,-12.50,,,false,", lines[2])
}

func TestReadTransactions_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := sampleTransactions()
	require.NoError(t, WriteTransactions(&buf, in))

	out, err := ReadTransactions(&buf)
	require.NoError(t, err)
	require.Len(t, out, 2)

	got := out[0]
	assert.Equal(t, in[0].RowID, got.RowID)
	assert.Equal(t, 0, got.Leg)
	assert.True(t, got.Date.Equal(in[0].Date))
	assert.Equal(t, "50.00", got.ActualAmount.Decimal.StringFixed(2))
	assert.Equal(t, in[0].PatternFlags, got.PatternFlags)
	assert.Equal(t, in[0].Extras, got.Extras)
	assert.True(t, got.IntegrityCheck)

	null := out[1]
	assert.Equal(t, 1, null.Seq)
	assert.True(t, null.Date.IsZero())
	assert.False(t, null.ActualAmount.Valid)
	assert.False(t, null.NetEffect.Valid)
	assert.Nil(t, null.PatternFlags)
	assert.Nil(t, null.Extras)
	assert.Equal(t, "-12.5", null.RunningBalance.String())
}

func TestReadTransactions_Errors(t *testing.T) {
	row := func(cells ...string) string { return Header + "\n" + strings.Join(cells, ",") + "\n" }
	base := []string{"f.csv", "f-0002b", "Ryan", "2024-01-01", "", "", "0.00", "1.00", "1.00", "1.00", "", "", "true", ""}
	with := func(i int, v string) string {
		cells := append([]string(nil), base...)
		cells[i] = v
		return row(cells...)
	}
	tests := []struct {
		name, data, want string
	}{
		{"wrong header", "a,b\n", "wrong number of fields"},
		{"renamed header", strings.Replace(row(base...), "extras", "extra", 1), "unexpected header"},
		{"bad date", with(colDate, "01/02/2024"), "parsing date"},
		{"bad amount", with(colNet, "abc"), "parsing net_effect"},
		{"bad bool", with(colIntegrity, "yes"), "parsing integrity_check"},
		{"bad extras", with(colExtras, "{"), "parsing extras"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTransactions(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	txns, err := ReadTransactions(strings.NewReader(row(base...)))
	require.NoError(t, err)
	assert.Equal(t, 1, txns[0].Leg)
}

func TestSummary_RoundTrip(t *testing.T) {
	s := model.Summary{
		People: []model.PersonTotal{
			{Person: "Ryan", NetOwed: decimal.RequireFromString("430")},
			{Person: "Jordyn", NetOwed: decimal.RequireFromString("-430")},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s))
	assert.Equal(t, "person,net_owed\nRyan,430.00\nJordyn,-430.00\nTOTAL,0.00\n", buf.String())

	got, err := ReadSummary(&buf)
	require.NoError(t, err)
	require.Len(t, got.People, 2)
	assert.Equal(t, "Jordyn", got.People[1].Person)
	assert.True(t, got.Total.IsZero())
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	w := NewFileWriter(dir, "ledger.csv", "summary.csv")

	unlock, err := w.Lock()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, LockName))

	_, err = w.Lock()
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, w.WriteLedger(sampleTransactions()))
	require.NoError(t, w.WriteSummary(model.Summary{}))
	require.NoError(t, unlock())
	require.NoError(t, unlock(), "second unlock is a no-op")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"ledger.csv", "summary.csv"}, names, "no lock or temp files left")

	txns, err := ReadFile(w.LedgerPath())
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestFileWriter_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, "ledger.csv", "summary.csv")
	require.NoError(t, os.WriteFile(w.LedgerPath(), []byte("old"), 0o644))

	require.NoError(t, w.WriteLedger(nil))

	data, err := os.ReadFile(w.LedgerPath())
	require.NoError(t, err)
	assert.Equal(t, Header+"\n", string(data))
}
