package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/splitledger/internal/buildinfo"
	"github.com/cleared-dev/splitledger/internal/config"
	"github.com/cleared-dev/splitledger/internal/logger"
)

type globalOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "splitledger",
		Short:   "Reconcile shared expenses between two people",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log := logger.NewConsole(cmd.ErrOrStderr(), opts.debug)
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.FileName, "path to splitledger.yaml")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newInitCommand(),
		newProcessCommand(opts),
		newMatchCommand(opts),
		newCheckCommand(opts),
		newAddRuleCommand(opts),
	)

	return rootCmd
}

// workspace is a loaded configuration and the directory it lives in.
type workspace struct {
	root string
	cfg  config.Config
}

func (o *globalOptions) load() (workspace, error) {
	path, err := filepath.Abs(o.configPath)
	if err != nil {
		return workspace{}, fmt.Errorf("resolving config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return workspace{}, err
	}
	return workspace{root: filepath.Dir(path), cfg: cfg}, nil
}
