package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/splitledger/internal/gitops"
	"github.com/cleared-dev/splitledger/internal/importer"
	"github.com/cleared-dev/splitledger/internal/ledger"
	"github.com/cleared-dev/splitledger/internal/logger"
	"github.com/cleared-dev/splitledger/internal/merchant"
	"github.com/cleared-dev/splitledger/internal/pipeline"
	"github.com/cleared-dev/splitledger/internal/runlog"
	"github.com/cleared-dev/splitledger/internal/schema"
)

type processOptions struct {
	dryRun  bool
	outDir  string
	archive bool
	commit  bool
}

func newProcessCommand(g *globalOptions) *cobra.Command {
	opts := processOptions{}

	cmd := &cobra.Command{
		Use:   "process [files or directories...]",
		Short: "Reconcile source CSVs into the ledger and summary",
		Long: "Reconcile source CSVs into the ledger and summary. With no arguments the\n" +
			"workspace import/ directory is processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.load()
			if err != nil {
				return err
			}
			return runProcess(cmd, ws, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "reconcile and report without writing anything")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "output directory (overrides output.dir)")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "move processed files from import/ to import/processed/")
	cmd.Flags().BoolVar(&opts.commit, "commit", false, "commit outputs to the workspace git repository")

	return cmd
}

// newRunner builds a pipeline runner from the workspace's registry and
// merchant rules.
func newRunner(cmd *cobra.Command, ws workspace) (*pipeline.Runner, error) {
	registry := schema.Default()
	if ws.cfg.Schema.Registry != "" {
		r, err := schema.Load(ws.cfg.Path(ws.cfg.Schema.Registry))
		if err != nil {
			return nil, err
		}
		registry = r
	}

	rules, err := merchant.Load(ws.cfg.Path(ws.cfg.MerchantRules))
	if err != nil {
		return nil, err
	}

	return pipeline.New(ws.cfg, registry, rules, logger.FromContext(cmd.Context()))
}

func runProcess(cmd *cobra.Command, ws workspace, args []string, opts processOptions) error {
	if opts.outDir != "" {
		dir, err := filepath.Abs(opts.outDir)
		if err != nil {
			return fmt.Errorf("resolving output dir: %w", err)
		}
		ws.cfg = ws.cfg.WithOutputDir(dir)
	}

	if len(args) == 0 {
		args = []string{filepath.Join(ws.root, importer.ImportDir)}
	}
	paths, err := importer.Expand(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no CSV files found in %v", args)
	}

	runner, err := newRunner(cmd, ws)
	if err != nil {
		return err
	}

	w := ledger.NewFileWriter(ws.cfg.Path(ws.cfg.Output.Dir), ws.cfg.Output.Ledger, ws.cfg.Output.Summary)
	report, err := runner.Run(cmd.Context(), paths, w, pipeline.Options{DryRun: opts.dryRun})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printReport(out, report)
	if opts.dryRun {
		fmt.Fprintln(out, "dry run: nothing written")
		return nil
	}

	if err := runlog.Append(ws.root, runlog.FromReport(report, time.Now())); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s and %s\n", w.LedgerPath(), w.SummaryPath())

	commitPaths := []string{w.LedgerPath(), w.SummaryPath(), runlog.Path(ws.root)}
	if opts.archive {
		archived, err := archive(ws.root, report)
		if err != nil {
			return err
		}
		if archived > 0 {
			fmt.Fprintf(out, "archived %d files\n", archived)
			commitPaths = append(commitPaths, filepath.Join(ws.root, importer.ImportDir))
		}
	}

	if opts.commit {
		msg := fmt.Sprintf("process: run %s (%d files)", report.RunID, len(report.Files))
		hash, err := gitops.Commit(ws.root, msg, ws.cfg.Git.Author(), commitPaths...)
		if err != nil {
			return err
		}
		if hash != "" {
			fmt.Fprintf(out, "committed %s\n", hash)
		}
	}
	return nil
}

// archive moves every successfully processed file that came from the
// workspace import directory into import/processed.
func archive(root string, report pipeline.Report) (int, error) {
	importDir := filepath.Join(root, importer.ImportDir)
	n := 0
	for _, f := range report.Files {
		if f.Skipped() {
			continue
		}
		abs, err := filepath.Abs(f.Path)
		if err != nil || filepath.Dir(abs) != importDir {
			continue
		}
		if err := importer.MarkProcessed(root, filepath.Base(abs)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

func printReport(out io.Writer, r pipeline.Report) {
	bold.Fprintf(out, "Run %s\n", r.RunID)
	for _, f := range r.Files {
		name := filepath.Base(f.Path)
		if f.Skipped() {
			red.Fprintf(out, "  %-28s skipped: %v\n", name, f.Err)
			continue
		}
		fmt.Fprintf(out, "  %-28s %-18s %d rows", name, f.SchemaID, f.Rows)
		if f.Flagged > 0 {
			yellow.Fprintf(out, ", %d flagged", f.Flagged)
		}
		fmt.Fprintln(out)
	}
	if r.BeforeFloor > 0 {
		fmt.Fprintf(out, "  %d rows before the date floor excluded\n", r.BeforeFloor)
	}

	fmt.Fprintln(out)
	for _, p := range r.Summary.People {
		fmt.Fprintf(out, "  %-12s %12s\n", p.Person, p.NetOwed.StringFixed(2))
	}
	total := fmt.Sprintf("  %-12s %12s", ledger.TotalRow, r.Summary.Total.StringFixed(2))
	if r.Summary.Balanced() {
		green.Fprintln(out, total)
	} else {
		red.Fprintf(out, "%s  out of balance (tolerance %s)\n", total, r.Summary.Tolerance)
	}

	printViolations(out, r.Violations)
}
