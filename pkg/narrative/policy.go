package narrative

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/focusforward/caseguard/pkg/canonicalize"
	"github.com/focusforward/caseguard/pkg/llm"
)

// PolicyVersion is the revision of the canonical prompt policy.
const PolicyVersion = "3.0.0"

// Anchors is the audit vocabulary the generator reports gaps in.
var Anchors = []string{
	"danger assessment",
	"risk context",
	"discharge reasoning",
	"safety-net advice",
	"objective data",
}

// Example is one few-shot demonstration.
type Example struct {
	Input  string `json:"input"`
	Output Output `json:"output"`
}

// PromptPolicy is a versioned system prompt plus its demonstrations.
type PromptPolicy struct {
	Version  string    `json:"version"`
	System   string    `json:"system"`
	Examples []Example `json:"examples"`
}

// Validate checks the policy is usable.
func (p *PromptPolicy) Validate() error {
	if _, err := semver.StrictNewVersion(p.Version); err != nil {
		return fmt.Errorf("narrative: invalid policy version %q: %w", p.Version, err)
	}
	if p.System == "" {
		return fmt.Errorf("narrative: policy %s has no system prompt", p.Version)
	}
	return nil
}

// Fingerprint is the canonical hash of the policy. It changes whenever
// any prompt text or example changes.
func (p *PromptPolicy) Fingerprint() (string, error) {
	return canonicalize.Hash(p)
}

// Messages builds the chat transcript for one note: the system prompt, each
// example as a user/assistant exchange, then the note with its context
// block.
func (p *PromptPolicy) Messages(note string, c Context) ([]llm.Message, error) {
	msgs := make([]llm.Message, 0, 2+2*len(p.Examples))
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: p.System})
	for _, ex := range p.Examples {
		out, err := json.Marshal(ex.Output)
		if err != nil {
			return nil, fmt.Errorf("narrative: encode example: %w", err)
		}
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: ex.Input},
			llm.Message{Role: llm.RoleAssistant, Content: string(out)},
		)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: note + c.Block()})
	return msgs, nil
}

// CanonicalPolicy returns a fresh copy of the canonical prompt policy.
func CanonicalPolicy() *PromptPolicy {
	examples := make([]Example, len(canonicalExamples))
	copy(examples, canonicalExamples)
	return &PromptPolicy{
		Version:  PolicyVersion,
		System:   canonicalSystemPrompt,
		Examples: examples,
	}
}
