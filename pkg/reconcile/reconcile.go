// Package reconcile merges the rule verdict with generated output into the
// final review result.
package reconcile

import (
	"strings"

	"github.com/focusforward/caseguard/pkg/narrative"
	"github.com/focusforward/caseguard/pkg/rules"
)

// CoverPrefix is how many leading characters of a pending line an existing
// anchor must contain, case-insensitively, to count as covering it.
const CoverPrefix = 16

// ReviewResult is the externally visible result of one review.
type ReviewResult struct {
	Classification         rules.Tier `json:"classification"`
	MissingAnchors         []string   `json:"missing_anchors"`
	Reasoning              string     `json:"reasoning"`
	SuggestedDocumentation string     `json:"suggested_documentation"`
	DefensibleNote         string     `json:"defensible_note"`
}

// Reconcile applies the rule layer's authority to generated output. A
// determined verdict always sets the classification; anchors are the
// generated ones plus any pending line they do not already cover; narrative
// fields pass through untouched.
func Reconcile(v rules.Verdict, pending []string, gen narrative.Output) ReviewResult {
	class := gen.Classification
	if v.Determined() {
		class = v.Tier
	}

	return ReviewResult{
		Classification:         class,
		MissingAnchors:         MergeAnchors(gen.MissingAnchors, pending),
		Reasoning:              gen.Reasoning,
		SuggestedDocumentation: gen.SuggestedDocumentation,
		DefensibleNote:         gen.DefensibleNote,
	}
}

// MergeAnchors returns the ordered-unique anchors followed by the pending
// lines not already covered. The result is never nil.
func MergeAnchors(anchors, pending []string) []string {
	out := make([]string, 0, len(anchors)+len(pending))
	seen := make(map[string]bool, len(anchors)+len(pending))
	for _, a := range anchors {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}

	for _, p := range pending {
		p = strings.TrimSpace(p)
		if p == "" || covered(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func covered(anchors []string, line string) bool {
	prefix := strings.ToLower(line)
	if r := []rune(prefix); len(r) > CoverPrefix {
		prefix = string(r[:CoverPrefix])
	}
	for _, a := range anchors {
		if strings.Contains(strings.ToLower(a), prefix) {
			return true
		}
	}
	return false
}
