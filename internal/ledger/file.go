package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cleared-dev/splitledger/internal/model"
)

// LockName is the lock file created in the output directory during a write.
const LockName = ".splitledger.lock"

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = errors.New("output directory is locked")

// FileWriter writes the ledger and summary into a directory. Each file is
// written to a temporary name and renamed into place.
type FileWriter struct {
	Dir         string
	LedgerName  string
	SummaryName string
}

// NewFileWriter creates a FileWriter.
func NewFileWriter(dir, ledgerName, summaryName string) *FileWriter {
	return &FileWriter{Dir: dir, LedgerName: ledgerName, SummaryName: summaryName}
}

// LedgerPath returns the ledger file path.
func (w *FileWriter) LedgerPath() string { return filepath.Join(w.Dir, w.LedgerName) }

// SummaryPath returns the summary file path.
func (w *FileWriter) SummaryPath() string { return filepath.Join(w.Dir, w.SummaryName) }

// Lock creates the output directory and its lock file. The returned function
// removes the lock.
func (w *FileWriter) Lock() (func() error, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(w.Dir, LockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s exists", ErrLocked, path)
		}
		return nil, fmt.Errorf("creating lock: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock: %w", err)
	}
	return func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing lock: %w", err)
		}
		return nil
	}, nil
}

// WriteLedger replaces the ledger file.
func (w *FileWriter) WriteLedger(txns []model.Transaction) error {
	return atomicWrite(w.LedgerPath(), func(out io.Writer) error {
		return WriteTransactions(out, txns)
	})
}

// WriteSummary replaces the summary file.
func (w *FileWriter) WriteSummary(s model.Summary) error {
	return atomicWrite(w.SummaryPath(), func(out io.Writer) error {
		return WriteSummary(out, s)
	})
}

// ReadFile reads a ledger file from disk.
func ReadFile(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txns, nil
}

func atomicWrite(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
