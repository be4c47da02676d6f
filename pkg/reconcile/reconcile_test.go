package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/focusforward/caseguard/pkg/extract"
	"github.com/focusforward/caseguard/pkg/narrative"
	"github.com/focusforward/caseguard/pkg/rules"
)

func generated(class rules.Tier, anchors ...string) narrative.Output {
	return narrative.Output{
		Classification:         class,
		MissingAnchors:         anchors,
		Reasoning:              "why",
		SuggestedDocumentation: "hint",
		DefensibleNote:         "note",
	}
}

func TestReconcile(t *testing.T) {
	dangerous := rules.Verdict{Tier: rules.TierDangerous, Source: rules.SourceRule, Rules: []rules.RuleID{rules.DischargeHypoxia}}
	imaging := "Imaging pending: ordered or advised but no result is documented, so it must not be described as completed"

	tests := []struct {
		name    string
		verdict rules.Verdict
		pending []string
		gen     narrative.Output
		want    ReviewResult
	}{
		{
			name:    "rule tier overrides generated",
			verdict: dangerous,
			gen:     generated(rules.TierSafe),
			want: ReviewResult{
				Classification: rules.TierDangerous, MissingAnchors: []string{},
				Reasoning: "why", SuggestedDocumentation: "hint", DefensibleNote: "note",
			},
		},
		{
			name:    "undetermined defers to generated",
			verdict: rules.Undetermined(),
			gen:     generated(rules.TierBorderline, "safety-net advice"),
			want: ReviewResult{
				Classification: rules.TierBorderline, MissingAnchors: []string{"safety-net advice"},
				Reasoning: "why", SuggestedDocumentation: "hint", DefensibleNote: "note",
			},
		},
		{
			name:    "pending appended",
			verdict: rules.Undetermined(),
			pending: []string{imaging},
			gen:     generated(rules.TierSafe, "objective data"),
			want: ReviewResult{
				Classification: rules.TierSafe, MissingAnchors: []string{"objective data", imaging},
				Reasoning: "why", SuggestedDocumentation: "hint", DefensibleNote: "note",
			},
		},
		{
			name:    "pending covered by prefix",
			verdict: dangerous,
			pending: []string{imaging},
			gen:     generated(rules.TierDangerous, "IMAGING PENDING: CT head result"),
			want: ReviewResult{
				Classification: rules.TierDangerous, MissingAnchors: []string{"IMAGING PENDING: CT head result"},
				Reasoning: "why", SuggestedDocumentation: "hint", DefensibleNote: "note",
			},
		},
		{
			name:    "generated duplicates collapse",
			verdict: rules.Undetermined(),
			gen:     generated(rules.TierSafe, "Objective data", " objective data ", "", "risk context"),
			want: ReviewResult{
				Classification: rules.TierSafe, MissingAnchors: []string{"Objective data", "risk context"},
				Reasoning: "why", SuggestedDocumentation: "hint", DefensibleNote: "note",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.verdict, tt.pending, tt.gen)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Reconcile() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReconcile_NilAnchorsBecomeEmpty(t *testing.T) {
	got := Reconcile(rules.Undetermined(), nil, narrative.Output{Classification: rules.TierSafe})
	assert.NotNil(t, got.MissingAnchors)
	assert.Empty(t, got.MissingAnchors)
}

func TestReconcile_PendingFromRuleLayer(t *testing.T) {
	ev := rules.Canonical().Evaluate(extract.Extract("head injury ct advised troponin pending discharged"))
	got := Reconcile(ev.Verdict, ev.Pending, generated(rules.TierSafe))

	assert.Equal(t, rules.TierDangerous, got.Classification)
	if diff := cmp.Diff(ev.Pending, got.MissingAnchors); diff != "" {
		t.Errorf("anchors mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeAnchors_ShortPendingLine(t *testing.T) {
	got := MergeAnchors([]string{"ecg pending review"}, []string{"ECG pending"})
	assert.Equal(t, []string{"ecg pending review"}, got)
}
