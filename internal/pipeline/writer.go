package pipeline

import "github.com/cleared-dev/splitledger/internal/model"

// Writer persists a finished run. The runner locks, writes the ledger, writes
// the summary and releases the lock, in that order.
//
//go:generate mockgen -destination=mocks/mock_writer.go -source=writer.go Writer
type Writer interface {
	Lock() (func() error, error)
	WriteLedger(txns []model.Transaction) error
	WriteSummary(s model.Summary) error
}
