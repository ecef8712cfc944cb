package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/splitledger/internal/importer"
)

func newMatchCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <file>...",
		Short: "Show which schema each file matches, without reconciling",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.load()
			if err != nil {
				return err
			}
			runner, err := newRunner(cmd, ws)
			if err != nil {
				return err
			}
			for _, path := range args {
				res, err := runner.Inspect(path)
				if err != nil {
					return err
				}
				printMatch(cmd.OutOrStdout(), res)
			}
			return nil
		},
	}
}

func printMatch(out io.Writer, res importer.Result) {
	m := res.Match
	bold.Fprintf(out, "%s\n", res.Path)
	fmt.Fprintf(out, "  schema:  %s (%s)\n", m.Schema.ID, m.Schema.Kind)
	fmt.Fprintf(out, "  score:   required=%d optional=%d filename=%t\n", m.Score.Required, m.Score.Optional, m.Score.Filename)
	fmt.Fprintf(out, "  header:  row %d\n", res.HeaderRow+1)
	if len(m.Missing) > 0 {
		yellow.Fprintf(out, "  missing: %s\n", strings.Join(m.Missing, ", "))
	}
	if len(m.Extra) > 0 {
		fmt.Fprintf(out, "  extra:   %s\n", strings.Join(m.Extra, ", "))
	}
	flagged := 0
	for _, r := range res.Records {
		if len(r.Flags) > 0 {
			flagged++
		}
	}
	fmt.Fprintf(out, "  rows:    %d (%d flagged)\n", len(res.Records), flagged)
}
