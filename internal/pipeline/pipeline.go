// Package pipeline runs one batch: read and match every input file in
// parallel, merge the records in input order, reconcile, check and write.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/splitledger/internal/config"
	"github.com/cleared-dev/splitledger/internal/id"
	"github.com/cleared-dev/splitledger/internal/importer"
	"github.com/cleared-dev/splitledger/internal/integrity"
	"github.com/cleared-dev/splitledger/internal/model"
	"github.com/cleared-dev/splitledger/internal/parties"
	"github.com/cleared-dev/splitledger/internal/patterns"
	"github.com/cleared-dev/splitledger/internal/reconcile"
	"github.com/cleared-dev/splitledger/internal/schema"
)

// Options controls a single run.
type Options struct {
	DryRun bool // compute everything, write nothing
}

// FileReport is the outcome for one input file.
type FileReport struct {
	Path     string
	SchemaID string
	Score    schema.Score
	Missing  []string
	Extra    []string
	Rows     int
	Flagged  int   // rows carrying a parse flag
	Err      error // recoverable file error; the file was skipped
}

// Skipped reports whether the file was left out of the run.
func (f FileReport) Skipped() bool { return f.Err != nil }

// Report is the outcome of a run.
type Report struct {
	RunID        string
	Files        []FileReport
	BeforeFloor  int // records dropped by the configured date floor
	Summary      model.Summary
	Transactions []model.Transaction
	Violations   []integrity.Violation
	Written      bool
}

// SkippedFiles returns the files left out of the run.
func (r Report) SkippedFiles() []FileReport {
	var out []FileReport
	for _, f := range r.Files {
		if f.Skipped() {
			out = append(out, f)
		}
	}
	return out
}

// Runner wires the importer, engine and checker for one configuration.
type Runner struct {
	cfg     config.Config
	parties *parties.Service
	opts    importer.Options
	engine  *reconcile.Engine
	log     zerolog.Logger
}

// New creates a Runner. merchants may be nil.
func New(cfg config.Config, registry *schema.Registry, merchants importer.MerchantNormalizer, log zerolog.Logger) (*Runner, error) {
	ps := parties.NewService(cfg.Parties)
	det, err := patterns.NewDetector(ps, cfg.Patterns)
	if err != nil {
		return nil, fmt.Errorf("building pattern rules: %w", err)
	}

	markers := append([]string(nil), cfg.Schema.HeaderMarkers...)
	markers = append(markers, ps.Tokens()...)

	return &Runner{
		cfg:     cfg,
		parties: ps,
		opts: importer.Options{
			Matcher:   schema.Matcher{Registry: registry, MinRequired: cfg.Schema.MinRequiredHits, Parties: ps.Names()},
			Markers:   markers,
			Merchants: merchants,
			Parties:   ps,
		},
		engine: reconcile.NewEngine(cfg, ps, det, log),
		log:    log,
	}, nil
}

// Inspect imports a single file without reconciling it.
func (r *Runner) Inspect(path string) (importer.Result, error) {
	return importer.Import(path, r.opts)
}

// Run processes paths and, unless opts.DryRun, hands the result to w. A
// *schema.FatalSchemaError aborts the run before anything is written;
// malformed files are skipped and reported.
func (r *Runner) Run(ctx context.Context, paths []string, w Writer, opts Options) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	log := r.log.With().Str("run_id", report.RunID).Logger()

	results, err := r.importAll(ctx, paths, log)
	if err != nil {
		return report, err
	}

	floor := r.cfg.DateFloorTime()
	var records []model.Record
	for i, res := range results {
		fr := FileReport{Path: paths[i], Err: res.err}
		if res.err == nil {
			fr.SchemaID = res.Match.Schema.ID
			fr.Score = res.Match.Score
			fr.Missing = res.Match.Missing
			fr.Extra = res.Match.Extra
			fr.Rows = len(res.Records)
		}
		for _, rec := range res.Records {
			if len(rec.Flags) > 0 {
				fr.Flagged++
			}
			if !floor.IsZero() && !rec.Date.IsZero() && rec.Date.Before(floor) {
				report.BeforeFloor++
				continue
			}
			rec.Seq = len(records)
			records = append(records, rec)
		}
		report.Files = append(report.Files, fr)
	}

	summary, txns := r.engine.BuildBaseline(reconcile.Split(records))
	checked, violations := integrity.Check(txns, r.cfg.ToleranceDecimal(), r.parties)
	report.Summary = summary
	report.Transactions = checked
	report.Violations = violations

	log.Info().
		Int("files", len(paths)).
		Int("skipped", len(report.SkippedFiles())).
		Int("records", len(records)).
		Int("transactions", len(checked)).
		Int("violations", len(violations)).
		Str("total", summary.Total.StringFixed(2)).
		Msg("run complete")

	if opts.DryRun || w == nil {
		return report, nil
	}
	if err := write(w, checked, summary); err != nil {
		return report, err
	}
	report.Written = true
	return report, nil
}

type fileResult struct {
	importer.Result
	err error
}

// importAll imports every path concurrently and returns results in path
// order. A fatal error cancels the remaining work.
func (r *Runner) importAll(ctx context.Context, paths []string, log zerolog.Logger) ([]fileResult, error) {
	results := make([]fileResult, len(paths))
	sources := id.Sources(paths)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Workers, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			opts := r.opts
			opts.Source = sources[i]
			res, err := importer.Import(path, opts)
			var fileErr *importer.FileError
			switch {
			case errors.As(err, &fileErr):
				log.Warn().Err(err).Str("file", path).Msg("skipping file")
				results[i] = fileResult{err: err}
				return nil
			case err != nil:
				return err
			}
			log.Debug().
				Str("file", path).
				Str("schema", res.Match.Schema.ID).
				Int("rows", len(res.Records)).
				Msg("file imported")
			results[i] = fileResult{Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func write(w Writer, txns []model.Transaction, summary model.Summary) (err error) {
	unlock, err := w.Lock()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, unlock())
	}()

	if err := w.WriteLedger(txns); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := w.WriteSummary(summary); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
