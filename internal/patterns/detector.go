// Package patterns classifies transaction descriptions into split policies
// with an ordered list of regex rules. The first matching rule decides.
//
// Rules are evaluated top to bottom. New rules go at the end: inserting one
// ahead of a more specific rule changes how past rows reconcile.
package patterns

import (
	"fmt"
	"regexp"

	"github.com/cleared-dev/splitledger/internal/config"
	"github.com/cleared-dev/splitledger/internal/model"
)

// Built-in rule names, also used as pattern flags.
const (
	RuleMultiplier   = "full_to_multiplier"
	RuleGift         = "full_to_gift"
	RuleDoubleCharge = "double_charge"
	RuleCashback     = "not_shared_cashback"
	RuleStandard     = "standard"
)

// Parties is the party lookup the detector needs.
type Parties interface {
	Alternation() string
	Resolve(name string) (string, bool)
}

// Rule is one entry of the cascade.
type Rule struct {
	Name   string
	Policy model.Policy
	Target string // fixed full_to target; empty when captured from the text

	re *regexp.Regexp
}

// Pattern returns the rule's regex source.
func (r Rule) Pattern() string { return r.re.String() }

// Decision is the outcome of Detect.
type Decision struct {
	Policy model.Policy
	Target string   // party receiving the full amount, for full_to
	Rule   string   // name of the deciding rule
	Match  string   // text the deciding rule matched
	Flags  []string // every rule whose pattern matched, in rule order
}

// Detector holds the ordered rule list.
type Detector struct {
	rules   []Rule
	parties Parties
}

// NewDetector builds the built-in cascade and appends extra configured rules
// after it.
func NewDetector(ps Parties, extra []config.PatternRule) (*Detector, error) {
	alt := ps.Alternation()
	d := &Detector{parties: ps}
	d.rules = []Rule{
		{Name: RuleMultiplier, Policy: model.PolicyFullTo, re: regexp.MustCompile(`(?i)\b\d+\s*x\s+` + alt + `\b`)},
		{Name: RuleGift, Policy: model.PolicyFullTo, re: regexp.MustCompile(`(?i)\bgift\s+(?:for|to)\s+` + alt + `\b`)},
		{Name: RuleDoubleCharge, Policy: model.PolicyDoubleCharge, re: regexp.MustCompile(`(?i)\(\s*\d+\s*x\s*\)`)},
		{Name: RuleCashback, Policy: model.PolicyNotShared, re: regexp.MustCompile(`(?i)\b(?:cash\s*back|rebates?|rewards?|statement\s+credit)\b`)},
	}

	for i, pr := range extra {
		re, err := regexp.Compile(pr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %d %s: %w", i, pr.Name, err)
		}
		rule := Rule{Name: pr.Name, Policy: model.Policy(pr.Policy), re: re}
		switch rule.Policy {
		case model.PolicyFullTo:
			name, ok := ps.Resolve(pr.Target)
			if !ok {
				return nil, fmt.Errorf("pattern %d %s: target %q is not a party", i, pr.Name, pr.Target)
			}
			rule.Target = name
		case model.PolicyDoubleCharge, model.PolicyNotShared:
		default:
			return nil, fmt.Errorf("pattern %d %s: unknown policy %q", i, pr.Name, pr.Policy)
		}
		d.rules = append(d.rules, rule)
	}
	return d, nil
}

// Rules returns the cascade in evaluation order.
func (d *Detector) Rules() []Rule {
	return d.rules
}

// Detect classifies a description. payer is the person who paid; it becomes
// the target when a full_to match names no party.
func (d *Detector) Detect(description, payer string) Decision {
	dec := Decision{Policy: model.PolicyStandard, Rule: RuleStandard}
	decided := false

	for _, r := range d.rules {
		m := r.re.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		if r.Policy == model.PolicyFullTo && r.Target == "" {
			name, ok := d.parties.Resolve(m[len(m)-1])
			if !ok {
				continue
			}
			if !decided {
				dec.Target = name
			}
		}
		dec.Flags = append(dec.Flags, r.Name)
		if decided {
			continue
		}
		decided = true
		dec.Policy = r.Policy
		dec.Rule = r.Name
		dec.Match = m[0]
		if r.Target != "" {
			dec.Target = r.Target
		}
	}
	if dec.Policy == model.PolicyFullTo && dec.Target == "" {
		dec.Target = payer
	}
	return dec
}
