package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/splitledger/internal/config"
	"github.com/cleared-dev/splitledger/internal/importer"
	"github.com/cleared-dev/splitledger/internal/model"
	"github.com/cleared-dev/splitledger/internal/pipeline"
	mock_pipeline "github.com/cleared-dev/splitledger/internal/pipeline/mocks"
	"github.com/cleared-dev/splitledger/internal/schema"
)

var fixtures = map[string]string{
	"expenses.csv": "Name,Date of Purchase,Merchant,Allowed Amount,Description\n" +
		"Ryan,2024-01-05,Trader Joe's,30.00,Groceries\n",
	"ledger.csv": "Name,Date,Description,Amount\n" +
		"Ryan,2024-01-06,Toll 15 (2x Ryan),50\n" +
		"Ryan,2024-01-07,Service fee $40 (2x),50\n" +
		"Jordyn,2024-01-08,Cashback reward,80\n",
	"rent.csv": "Month,Gross Total,Ryan %,Jordyn %,Paid By\n" +
		"2024-01,\"$1,000.00\",43%,57%,Jordyn\n",
}

func writeFixtures(t *testing.T, extra map[string][]byte) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"expenses.csv", "ledger.csv", "rent.csv"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(fixtures[name]), 0o644))
		paths = append(paths, p)
	}
	for name, data := range extra {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		paths = append(paths, p)
	}
	return paths
}

func testConfig() config.Config {
	return config.Default(
		config.Party{Name: "Ryan", Share: 0.43},
		config.Party{Name: "Jordyn", Share: 0.57},
	)
}

func newRunner(t *testing.T, cfg config.Config) *pipeline.Runner {
	t.Helper()
	r, err := pipeline.New(cfg, schema.Default(), nil, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestRun_WritesCheckedLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	paths := writeFixtures(t, map[string][]byte{"broken.csv": {0xff, 0xfe, 0x00}})
	w := mock_pipeline.NewMockWriter(ctrl)

	unlocked := false
	var written []model.Transaction
	var summary model.Summary
	gomock.InOrder(
		w.EXPECT().Lock().Return(func() error { unlocked = true; return nil }, nil),
		w.EXPECT().WriteLedger(gomock.Any()).DoAndReturn(func(txns []model.Transaction) error {
			written = txns
			return nil
		}),
		w.EXPECT().WriteSummary(gomock.Any()).DoAndReturn(func(s model.Summary) error {
			summary = s
			return nil
		}),
	)

	report, err := newRunner(t, testConfig()).Run(context.Background(), paths, w, pipeline.Options{})
	require.NoError(t, err)
	assert.True(t, report.Written)
	assert.True(t, unlocked)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, report.Files, 4)
	assert.Equal(t, "expense_history", report.Files[0].SchemaID)
	assert.Equal(t, "shared_ledger", report.Files[1].SchemaID)
	assert.Equal(t, "rent_allocation", report.Files[2].SchemaID)
	skipped := report.SkippedFiles()
	require.Len(t, skipped, 1)
	var fileErr *importer.FileError
	assert.True(t, errors.As(skipped[0].Err, &fileErr))

	require.Len(t, written, 10)
	for _, tx := range written {
		assert.True(t, tx.IntegrityCheck, tx.RowID)
	}
	assert.Empty(t, report.Violations)

	assert.Equal(t, "405.00", summary.NetOwed("Ryan").StringFixed(2))
	assert.Equal(t, "-405.00", summary.NetOwed("Jordyn").StringFixed(2))
	assert.True(t, summary.Balanced())
	assert.Equal(t, report.Summary, summary)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := mock_pipeline.NewMockWriter(ctrl)

	report, err := newRunner(t, testConfig()).Run(context.Background(), writeFixtures(t, nil), w, pipeline.Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.Len(t, report.Transactions, 10)
}

func TestRun_FatalSchemaAbortsBeforeWriting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := mock_pipeline.NewMockWriter(ctrl)
	paths := writeFixtures(t, map[string][]byte{"mystery.csv": []byte("Item,Price,Qty\nwidget,3,2\n")})

	_, err := newRunner(t, testConfig()).Run(context.Background(), paths, w, pipeline.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrNoSchema)
	assert.Contains(t, err.Error(), "mystery.csv")
}

func TestRun_WriteErrorStillUnlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := mock_pipeline.NewMockWriter(ctrl)
	unlocked := false
	gomock.InOrder(
		w.EXPECT().Lock().Return(func() error { unlocked = true; return nil }, nil),
		w.EXPECT().WriteLedger(gomock.Any()).Return(errors.New("disk full")),
	)

	report, err := newRunner(t, testConfig()).Run(context.Background(), writeFixtures(t, nil), w, pipeline.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing ledger: disk full")
	assert.True(t, unlocked)
	assert.False(t, report.Written)
}

func TestRun_LockErrorStopsWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := mock_pipeline.NewMockWriter(ctrl)
	w.EXPECT().Lock().Return(nil, errors.New("locked"))

	_, err := newRunner(t, testConfig()).Run(context.Background(), writeFixtures(t, nil), w, pipeline.Options{})
	assert.EqualError(t, err, "locked")
}

func TestRun_DateFloor(t *testing.T) {
	cfg := testConfig()
	cfg.DateFloor = "2024-01-07"

	report, err := newRunner(t, cfg).Run(context.Background(), writeFixtures(t, nil), nil, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.BeforeFloor, "expense, toll and rent rows predate the floor")
	assert.Len(t, report.Transactions, 4)
	assert.Equal(t, "25.00", report.Summary.NetOwed("Jordyn").StringFixed(2))
}

func TestRun_Deterministic(t *testing.T) {
	paths := writeFixtures(t, nil)
	cfg := testConfig()
	cfg.Workers = 3

	a, err := newRunner(t, cfg).Run(context.Background(), paths, nil, pipeline.Options{})
	require.NoError(t, err)
	b, err := newRunner(t, cfg).Run(context.Background(), paths, nil, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Transactions, b.Transactions)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRun_FlaggedRowsCounted(t *testing.T) {
	paths := writeFixtures(t, map[string][]byte{
		"more_expenses.csv": []byte("Name,Date,Allowed Amount\nSam,2024-01-09,12\nRyan,someday,10\n"),
	})

	report, err := newRunner(t, testConfig()).Run(context.Background(), paths, nil, pipeline.Options{})
	require.NoError(t, err)

	require.Len(t, report.Files, 4)
	assert.Equal(t, 2, report.Files[3].Flagged)
	assert.NotEmpty(t, report.Violations)
}

func TestInspect(t *testing.T) {
	paths := writeFixtures(t, nil)

	res, err := newRunner(t, testConfig()).Inspect(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "rent_allocation", res.Match.Schema.ID)
	assert.Len(t, res.Records, 1)
}

func TestNew_InvalidPatterns(t *testing.T) {
	cfg := testConfig()
	cfg.Patterns = []config.PatternRule{{Name: "bad", Pattern: "(", Policy: "not_shared"}}

	_, err := pipeline.New(cfg, schema.Default(), nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRun_SameFileNameInTwoFolders(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"2023": "Name,Date of Purchase,Allowed Amount\nRyan,2024-01-05,oops\n",
		"2024": "Name,Date of Purchase,Allowed Amount\nRyan,2024-01-06,20\n",
	}
	var paths []string
	for _, year := range []string{"2023", "2024"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, year), 0o755))
		p := filepath.Join(dir, year, "expenses.csv")
		require.NoError(t, os.WriteFile(p, []byte(files[year]), 0o644))
		paths = append(paths, p)
	}

	report, err := newRunner(t, testConfig()).Run(context.Background(), paths, nil, pipeline.Options{})
	require.NoError(t, err)

	byID := make(map[string]model.Transaction)
	for _, tx := range report.Transactions {
		_, dup := byID[tx.RowID]
		require.False(t, dup, "row id %s repeated", tx.RowID)
		byID[tx.RowID] = tx
	}
	require.Len(t, byID, 3)

	bad := byID["2023_expenses-0002a"]
	assert.Equal(t, "2023/expenses.csv", bad.SourceFile)
	assert.False(t, bad.IntegrityCheck)

	for _, rowID := range []string{"2024_expenses-0002a", "2024_expenses-0002b"} {
		tx, ok := byID[rowID]
		require.True(t, ok, rowID)
		assert.Equal(t, "2024/expenses.csv", tx.SourceFile)
		assert.True(t, tx.IntegrityCheck, rowID)
	}

	require.Len(t, report.Violations, 1)
	assert.Equal(t, "2023_expenses-0002a", report.Violations[0].RowID)
}
