// Package narrative defines the contract with the generative collaborator
// that classifies and rewrites a note, and an LLM-backed implementation of
// it.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/focusforward/caseguard/pkg/rules"
)

// Output is the structured payload a Producer must return.
type Output struct {
	Classification         rules.Tier `json:"classification"`
	MissingAnchors         []string   `json:"missing_anchors"`
	Reasoning              string     `json:"reasoning"`
	SuggestedDocumentation string     `json:"suggested_documentation"`
	DefensibleNote         string     `json:"defensible_note"`
}

// Check enforces the wire contract on an Output from any Producer: a
// SAFE/BORDERLINE/DANGEROUS classification and a non-empty defensible note.
func (o Output) Check() error {
	if _, err := rules.ParseTier(string(o.Classification)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if strings.TrimSpace(o.DefensibleNote) == "" {
		return fmt.Errorf("%w: empty defensible_note", ErrMalformedOutput)
	}
	return nil
}

// Producer turns a note plus rule-engine context into an Output. Any
// failure, including malformed output, is returned as an error and never
// papered over.
type Producer interface {
	Produce(ctx context.Context, note string, c Context) (Output, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, note string, c Context) (Output, error)

func (f ProducerFunc) Produce(ctx context.Context, note string, c Context) (Output, error) {
	return f(ctx, note, c)
}
