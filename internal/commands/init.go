package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/splitledger/internal/config"
	"github.com/cleared-dev/splitledger/internal/gitops"
	"github.com/cleared-dev/splitledger/internal/importer"
	"github.com/cleared-dev/splitledger/internal/ledger"
	"github.com/cleared-dev/splitledger/internal/merchant"
	"github.com/cleared-dev/splitledger/internal/schema"
)

const registryFile = "schemas.yaml"

func newInitCommand() *cobra.Command {
	var partyFlags []string
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new splitledger workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			ps := make([]config.Party, 0, len(partyFlags))
			for _, f := range partyFlags {
				p, err := parseParty(f)
				if err != nil {
					return err
				}
				ps = append(ps, p)
			}

			return runInit(cmd.OutOrStdout(), absDir, ps, useGit)
		},
	}

	cmd.Flags().StringArrayVar(&partyFlags, "party", nil, "party as Name=share or Name:alias1,alias2=share (repeat twice)")
	_ = cmd.MarkFlagRequired("party")
	cmd.Flags().BoolVar(&useGit, "git", false, "initialize a git repository and commit the scaffold")

	return cmd
}

// parseParty parses "Ryan=0.43", "Ryan=43%" or "Ryan:ry,ryan b=0.43".
func parseParty(s string) (config.Party, error) {
	name, share, ok := strings.Cut(s, "=")
	if !ok {
		return config.Party{}, fmt.Errorf("party %q: want Name=share", s)
	}

	var p config.Party
	name, aliases, _ := strings.Cut(name, ":")
	p.Name = strings.TrimSpace(name)
	for _, a := range strings.Split(aliases, ",") {
		if a = strings.TrimSpace(a); a != "" {
			p.Aliases = append(p.Aliases, a)
		}
	}

	share = strings.TrimSpace(share)
	pct := strings.HasSuffix(share, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(share, "%"), 64)
	if err != nil {
		return config.Party{}, fmt.Errorf("party %q: share: %w", s, err)
	}
	if pct {
		v /= 100
	}
	p.Share = v
	return p, nil
}

func runInit(out io.Writer, dir string, ps []config.Party, useGit bool) error {
	cfg := config.Default(ps...)
	cfg.Schema.Registry = registryFile
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid parties: %w", err)
	}

	for _, d := range []string{importer.ImportDir, filepath.Join(importer.ImportDir, "processed"), "logs", cfg.Output.Dir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, registryFile), schema.DefaultYAML(), 0o644); err != nil {
		return fmt.Errorf("writing schema registry: %w", err)
	}
	rules := filepath.Join(dir, cfg.MerchantRules)
	if err := os.WriteFile(rules, []byte(merchant.ColPattern+","+merchant.ColCanonical+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing merchant rules: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, importer.ImportDir, ".gitkeep"), nil, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if useGit {
		if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(ledger.LockName+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing .gitignore: %w", err)
		}
		if err := gitops.Init(dir); err != nil {
			return err
		}
		hash, err := gitops.Commit(dir, "init: splitledger workspace", cfg.Git.Author(), ".")
		if err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
		fmt.Fprintf(out, "Initialized splitledger workspace at %s (%s)\n", dir, hash)
		return nil
	}

	fmt.Fprintf(out, "Initialized splitledger workspace at %s\n", dir)
	return nil
}
