package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/splitledger/internal/integrity"
	"github.com/cleared-dev/splitledger/internal/ledger"
	"github.com/cleared-dev/splitledger/internal/parties"
	"github.com/cleared-dev/splitledger/internal/reconcile"
)

func newCheckCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [ledger.csv]",
		Short: "Re-verify a written ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.load()
			if err != nil {
				return err
			}
			path := ws.cfg.Path(filepath.Join(ws.cfg.Output.Dir, ws.cfg.Output.Ledger))
			if len(args) > 0 {
				path = args[0]
			}
			return runCheck(cmd.OutOrStdout(), ws, path)
		},
	}
}

func runCheck(out io.Writer, ws workspace, path string) error {
	txns, err := ledger.ReadFile(path)
	if err != nil {
		return err
	}

	tol := ws.cfg.ToleranceDecimal()
	ps := parties.NewService(ws.cfg.Parties)
	_, violations := integrity.Check(txns, tol, ps)
	violations = append(violations, integrity.CheckRunningBalances(txns, tol)...)

	summary := reconcile.Summarize(txns, ps.Names(), tol)
	for _, p := range summary.People {
		fmt.Fprintf(out, "  %-12s %12s\n", p.Person, p.NetOwed.StringFixed(2))
	}
	fmt.Fprintf(out, "  %-12s %12s\n", ledger.TotalRow, summary.Total.StringFixed(2))

	printViolations(out, violations)
	if len(violations) > 0 {
		return fmt.Errorf("%s: %d integrity violations", path, len(violations))
	}
	green.Fprintf(out, "%s: %d rows ok\n", path, len(txns))
	return nil
}

func printViolations(out io.Writer, violations []integrity.Violation) {
	if len(violations) == 0 {
		return
	}
	red.Fprintf(out, "\n%d integrity violations\n", len(violations))
	for _, v := range violations {
		fmt.Fprintf(out, "  %s\n", v.Error())
	}
}
