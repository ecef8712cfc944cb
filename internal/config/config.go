package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileName is the default configuration file name.
const FileName = "splitledger.yaml"

// Config represents the top-level splitledger.yaml configuration.
//
// A Config is a value: it is loaded once and never changed in place. Callers
// that need different settings build a new value with the With* methods.
type Config struct {
	Parties       []Party       `yaml:"parties"`
	Tolerance     float64       `yaml:"tolerance"`
	LedgerSplit   float64       `yaml:"ledger_split"`
	DateFloor     string        `yaml:"date_floor,omitempty"` // "YYYY-MM-DD"; earlier rows are excluded
	Rent          RentConfig    `yaml:"rent"`
	Schema        SchemaConfig  `yaml:"schema"`
	MerchantRules string        `yaml:"merchant_rules,omitempty"`
	Patterns      []PatternRule `yaml:"patterns,omitempty"`
	Output        OutputConfig  `yaml:"output"`
	Workers       int           `yaml:"workers"`
	Git           GitConfig     `yaml:"git"`

	dir string
}

// Party is one of the two people sharing costs.
type Party struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
	Share   float64  `yaml:"share"` // fraction of recurring bills and rent, e.g. 0.43
}

// RentConfig controls the rent explosion.
type RentConfig struct {
	Payer string `yaml:"payer"` // used when a rent row names no payer
}

// SchemaConfig controls schema matching.
type SchemaConfig struct {
	Registry        string   `yaml:"registry,omitempty"` // empty = built-in registry
	MinRequiredHits int      `yaml:"min_required_hits"`
	HeaderMarkers   []string `yaml:"header_markers,omitempty"`
}

// PatternRule is an extra split rule appended after the built-in ones.
type PatternRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Policy  string `yaml:"policy"`           // full_to, double_charge, not_shared
	Target  string `yaml:"target,omitempty"` // party for full_to
}

// OutputConfig names output files.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Ledger  string `yaml:"ledger"`
	Summary string `yaml:"summary"`
}

// GitConfig sets the author of commits made by process --commit.
type GitConfig struct {
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Author returns the git --author value.
func (g GitConfig) Author() string {
	return fmt.Sprintf("%s <%s>", g.AuthorName, g.AuthorEmail)
}

// Load reads a splitledger.yaml file from disk and validates it.
// Relative paths inside the file resolve against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.dir = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for two parties.
func Default(parties ...Party) Config {
	cfg := Config{
		Parties:     slices.Clone(parties),
		Tolerance:   0.02,
		LedgerSplit: 0.50,
		Schema: SchemaConfig{
			MinRequiredHits: 2,
			HeaderMarkers:   []string{"Name", "Month", "Date"},
		},
		MerchantRules: "merchant-rules.csv",
		Output: OutputConfig{
			Dir:     "output",
			Ledger:  "ledger.csv",
			Summary: "summary.csv",
		},
		Workers: 4,
		Git: GitConfig{
			AuthorName:  "splitledger",
			AuthorEmail: "splitledger@localhost",
		},
	}
	if len(parties) > 0 {
		cfg.Rent.Payer = parties[len(parties)-1].Name
	}
	return cfg
}

var validPolicies = []string{"full_to", "double_charge", "not_shared"}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	var errs []error

	if len(c.Parties) != 2 {
		errs = append(errs, fmt.Errorf("exactly 2 parties required, got %d", len(c.Parties)))
	}
	seen := make(map[string]bool)
	total := decimal.Zero
	for _, p := range c.Parties {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			errs = append(errs, errors.New("party with empty name"))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate party %q", p.Name))
		}
		seen[name] = true
		if p.Share < 0 || p.Share > 1 {
			errs = append(errs, fmt.Errorf("party %s: share %v outside [0, 1]", p.Name, p.Share))
		}
		total = total.Add(decimal.NewFromFloat(p.Share))
	}
	if len(c.Parties) == 2 && !total.Equal(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("party shares sum to %s, want 1", total))
	}

	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance %v is negative", c.Tolerance))
	}
	if c.LedgerSplit < 0 || c.LedgerSplit > 1 {
		errs = append(errs, fmt.Errorf("ledger_split %v outside [0, 1]", c.LedgerSplit))
	}
	if c.Rent.Payer != "" && !c.HasParty(c.Rent.Payer) {
		errs = append(errs, fmt.Errorf("rent payer %q is not a party", c.Rent.Payer))
	}
	if c.DateFloor != "" {
		if _, err := time.Parse("2006-01-02", c.DateFloor); err != nil {
			errs = append(errs, fmt.Errorf("date_floor: %w", err))
		}
	}
	if c.Schema.MinRequiredHits < 1 {
		errs = append(errs, fmt.Errorf("schema.min_required_hits must be at least 1, got %d", c.Schema.MinRequiredHits))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d is negative", c.Workers))
	}

	for i, r := range c.Patterns {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("patterns[%d]: missing name", i))
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("patterns[%d] %s: %w", i, r.Name, err))
		}
		if !slices.Contains(validPolicies, r.Policy) {
			errs = append(errs, fmt.Errorf("patterns[%d] %s: unknown policy %q", i, r.Name, r.Policy))
		}
		if r.Policy == "full_to" && !c.HasParty(r.Target) {
			errs = append(errs, fmt.Errorf("patterns[%d] %s: target %q is not a party", i, r.Name, r.Target))
		}
	}

	return errors.Join(errs...)
}

// HasParty reports whether name (case-insensitive) is a configured party name.
func (c Config) HasParty(name string) bool {
	for _, p := range c.Parties {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// ToleranceDecimal returns the rounding tolerance as a decimal.
func (c Config) ToleranceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Tolerance)
}

// LedgerSplitDecimal returns the counterpart fraction for ad-hoc ledger rows.
func (c Config) LedgerSplitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.LedgerSplit)
}

// DateFloorTime returns the parsed date floor, or the zero time when unset.
func (c Config) DateFloorTime() time.Time {
	t, err := time.Parse("2006-01-02", c.DateFloor)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Path resolves p against the directory the config was loaded from.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// WithTolerance returns a copy of c with a different rounding tolerance.
func (c Config) WithTolerance(tol float64) Config {
	c.Parties = slices.Clone(c.Parties)
	c.Tolerance = tol
	return c
}

// WithOutputDir returns a copy of c writing to dir.
func (c Config) WithOutputDir(dir string) Config {
	c.Parties = slices.Clone(c.Parties)
	c.Output.Dir = dir
	return c
}
