package rules

import "fmt"

// Tier is a risk classification.
type Tier string

const (
	TierSafe         Tier = "SAFE"
	TierBorderline   Tier = "BORDERLINE"
	TierDangerous    Tier = "DANGEROUS"
	TierUndetermined Tier = "UNDETERMINED"
)

// ParseTier parses a wire classification. UNDETERMINED is never a valid
// wire value.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierSafe, TierBorderline, TierDangerous:
		return t, nil
	default:
		return "", fmt.Errorf("rules: invalid classification %q", s)
	}
}

// Source records which layer produced a verdict.
type Source string

const (
	SourceRule       Source = "rule"
	SourceGenerative Source = "generative"
)

// RuleID identifies one row of the decision table.
type RuleID string

// Verdict is the outcome of classifying one FeatureSet.
type Verdict struct {
	Tier   Tier   `json:"tier"`
	Source Source `json:"source"`
	// Rules lists the triggered rule identifiers. It is empty when no rule
	// fired.
	Rules []RuleID `json:"rules"`
}

// Determined reports whether a rule settled the tier.
func (v Verdict) Determined() bool {
	return v.Tier != TierUndetermined
}

// Undetermined is the verdict returned when no rule fires.
func Undetermined() Verdict {
	return Verdict{Tier: TierUndetermined, Source: SourceGenerative, Rules: []RuleID{}}
}
