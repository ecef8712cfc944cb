package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/splitledger/internal/merchant"
)

func newAddRuleCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-rule <pattern> <canonical>",
		Short: "Append a merchant normalization rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.load()
			if err != nil {
				return err
			}
			path := ws.cfg.Path(ws.cfg.MerchantRules)
			if err := merchant.AddRule(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s -> %s to %s\n", args[0], args[1], path)
			return nil
		},
	}
}
