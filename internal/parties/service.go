// Package parties resolves names and aliases for the closed set of people
// sharing costs.
package parties

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/splitledger/internal/config"
)

// Party is a resolved party with its recurring-bill share.
type Party struct {
	Name    string
	Aliases []string
	Share   decimal.Decimal
}

// Service provides in-memory lookup over the configured parties.
type Service struct {
	parties []Party
	byAlias map[string]int
}

// NewService creates a Service from configured parties.
func NewService(cfgParties []config.Party) *Service {
	s := &Service{byAlias: make(map[string]int)}
	for i, p := range cfgParties {
		s.parties = append(s.parties, Party{
			Name:    p.Name,
			Aliases: p.Aliases,
			Share:   decimal.NewFromFloat(p.Share),
		})
		s.byAlias[key(p.Name)] = i
		for _, a := range p.Aliases {
			s.byAlias[key(a)] = i
		}
	}
	return s
}

func key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// All returns all parties in configured order.
func (s *Service) All() []Party {
	return s.parties
}

// Names returns canonical party names in configured order.
func (s *Service) Names() []string {
	names := make([]string, len(s.parties))
	for i, p := range s.parties {
		names[i] = p.Name
	}
	return names
}

// Resolve maps a name or alias (case-insensitive) to the canonical name.
func (s *Service) Resolve(name string) (string, bool) {
	i, ok := s.byAlias[key(name)]
	if !ok {
		return "", false
	}
	return s.parties[i].Name, true
}

// Exists reports whether name is a canonical party name.
func (s *Service) Exists(name string) bool {
	i, ok := s.byAlias[key(name)]
	return ok && s.parties[i].Name == name
}

// Get returns a party by canonical name or alias.
func (s *Service) Get(name string) (Party, bool) {
	i, ok := s.byAlias[key(name)]
	if !ok {
		return Party{}, false
	}
	return s.parties[i], true
}

// Counterpart returns the other party of a two-party arrangement.
func (s *Service) Counterpart(name string) (string, bool) {
	i, ok := s.byAlias[key(name)]
	if !ok || len(s.parties) != 2 {
		return "", false
	}
	return s.parties[1-i].Name, true
}

// Share returns the recurring-bill share of name, or zero.
func (s *Service) Share(name string) decimal.Decimal {
	p, ok := s.Get(name)
	if !ok {
		return decimal.Zero
	}
	return p.Share
}

// Tokens returns every name and alias, longest first, for building regexes.
func (s *Service) Tokens() []string {
	var tokens []string
	for _, p := range s.parties {
		tokens = append(tokens, p.Name)
		tokens = append(tokens, p.Aliases...)
	}
	// Longest first so "Ryan" is not shadowed by a shorter alias "Ry".
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && len(tokens[j]) > len(tokens[j-1]); j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
	return tokens
}

// Alternation returns a regex alternation group matching any party token.
func (s *Service) Alternation() string {
	tokens := s.Tokens()
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return "(" + strings.Join(quoted, "|") + ")"
}

// FromFilename returns the party whose name or alias appears as a word in the
// file's base name, e.g. "ryan_chase_2024.csv".
func (s *Service) FromFilename(path string) (string, bool) {
	base := strings.ToLower(filepath.Base(path))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	found := ""
	for _, w := range words {
		name, ok := s.Resolve(w)
		if !ok {
			continue
		}
		if found != "" && found != name {
			return "", false
		}
		found = name
	}
	return found, found != ""
}
