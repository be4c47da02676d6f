// Package rules holds the deterministic decision table that classifies a
// FeatureSet into a risk tier ahead of, and with authority over, the
// generative layer.
package rules

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/focusforward/caseguard/pkg/extract"
)

// Scope selects the disposition context a rule applies to.
type Scope string

const (
	// ScopeAdmitted rules run for admitted patients.
	ScopeAdmitted Scope = "admitted"
	// ScopeDischarge rules run for discharged and review-only patients.
	ScopeDischarge Scope = "discharge"
)

// Rule is one row of the decision table.
type Rule struct {
	ID    RuleID
	Scope Scope
	Tier  Tier
	// Summary is a short human description passed to the generative layer
	// when the rule fires.
	Summary string
	When    func(extract.FeatureSet) bool
}

// Table is an ordered, versioned rule set. Within a scope the first
// matching rule wins.
type Table struct {
	version *semver.Version
	rules   []Rule
}

// NewTable validates and builds a table. Rules may only escalate: a rule
// producing SAFE or UNDETERMINED is rejected, as is a DANGEROUS rule in
// the admitted scope.
func NewTable(version string, rules []Rule) (*Table, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("rules: invalid table version %q: %w", version, err)
	}

	seen := make(map[RuleID]bool, len(rules))
	for _, r := range rules {
		if r.ID == "" || r.When == nil {
			return nil, fmt.Errorf("rules: rule %q is incomplete", r.ID)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rules: duplicate rule %q", r.ID)
		}
		seen[r.ID] = true

		switch r.Scope {
		case ScopeAdmitted:
			if r.Tier != TierBorderline {
				return nil, fmt.Errorf("rules: admitted rule %q must produce %s", r.ID, TierBorderline)
			}
		case ScopeDischarge:
			if r.Tier != TierBorderline && r.Tier != TierDangerous {
				return nil, fmt.Errorf("rules: discharge rule %q cannot produce %s", r.ID, r.Tier)
			}
		default:
			return nil, fmt.Errorf("rules: rule %q has unknown scope %q", r.ID, r.Scope)
		}
	}

	return &Table{version: v, rules: append([]Rule(nil), rules...)}, nil
}

// MustTable is NewTable for package-level tables.
func MustTable(version string, rules []Rule) *Table {
	t, err := NewTable(version, rules)
	if err != nil {
		panic(err)
	}
	return t
}

// Version returns the table revision.
func (t *Table) Version() *semver.Version {
	return t.version
}

// Rules returns the rows in evaluation order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Rule looks up a row by identifier.
func (t *Table) Rule(id RuleID) (Rule, bool) {
	for _, r := range t.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Classify returns the verdict for fs. Only the first matching rule is
// reported.
func (t *Table) Classify(fs extract.FeatureSet) Verdict {
	scope, ok := scopeFor(fs.Disposition)
	if !ok {
		return Undetermined()
	}
	for _, r := range t.rules {
		if r.Scope == scope && r.When(fs) {
			return Verdict{Tier: r.Tier, Source: SourceRule, Rules: []RuleID{r.ID}}
		}
	}
	return Undetermined()
}

// Evaluation bundles a verdict with the pending investigations, which are
// computed on every path.
type Evaluation struct {
	Verdict Verdict  `json:"verdict"`
	Pending []string `json:"pending_investigations"`
}

// Evaluate classifies fs and lists its pending investigations.
func (t *Table) Evaluate(fs extract.FeatureSet) Evaluation {
	return Evaluation{Verdict: t.Classify(fs), Pending: Pending(fs)}
}

func scopeFor(d extract.Disposition) (Scope, bool) {
	switch d {
	case extract.DispositionAdmitted:
		return ScopeAdmitted, true
	case extract.DispositionDischarged, extract.DispositionReviewOnly:
		return ScopeDischarge, true
	default:
		return "", false
	}
}

// Pending lists a human-readable line for every investigation category
// documented as ordered or advised without a result.
func Pending(fs extract.FeatureSet) []string {
	out := []string{}
	for _, c := range extract.Categories {
		if fs.Status(c) == extract.StatusPending {
			out = append(out, pendingLines[c])
		}
	}
	return out
}

var pendingLines = map[extract.Category]string{
	extract.CategoryImaging: "Imaging pending: ordered or advised but no result is documented, " +
		"so it must not be described as completed",
	extract.CategoryCardiac: "Cardiac workup pending: ECG or troponin ordered or advised but no result " +
		"is documented, so it must not be described as completed",
	extract.CategoryAbdominalImaging: "Abdominal imaging pending: ultrasound or CT abdomen ordered or advised " +
		"but no result is documented, so it must not be described as completed",
}
