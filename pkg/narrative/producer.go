package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/focusforward/caseguard/pkg/llm"
)

// LLMProducer is a Producer backed by a chat-completion client.
type LLMProducer struct {
	client      llm.Client
	policy      *PromptPolicy
	validator   *Validator
	fingerprint string
	logger      *slog.Logger
}

// NewLLMProducer validates policy, compiles the output schema and computes
// the policy fingerprint. A nil policy selects the canonical one.
func NewLLMProducer(client llm.Client, policy *PromptPolicy, logger *slog.Logger) (*LLMProducer, error) {
	if client == nil {
		return nil, fmt.Errorf("narrative: client is required")
	}
	if policy == nil {
		policy = CanonicalPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	fp, err := policy.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("narrative: fingerprint policy: %w", err)
	}
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMProducer{
		client:      client,
		policy:      policy,
		validator:   v,
		fingerprint: fp,
		logger:      logger.With("component", "narrative"),
	}, nil
}

// Fingerprint returns the canonical hash of the active prompt policy.
func (p *LLMProducer) Fingerprint() string {
	return p.fingerprint
}

// Produce makes exactly one generation call.
func (p *LLMProducer) Produce(ctx context.Context, note string, c Context) (Output, error) {
	msgs, err := p.policy.Messages(note, c)
	if err != nil {
		return Output{}, err
	}

	start := time.Now()
	resp, err := p.client.Chat(ctx, msgs, &llm.SamplingOptions{Temperature: 0, JSONObject: true})
	if err != nil {
		return Output{}, fmt.Errorf("narrative: generation failed: %w", err)
	}

	out, err := p.validator.Decode([]byte(resp.Content))
	if err != nil {
		p.logger.WarnContext(ctx, "rejected generated output",
			"policy_version", p.policy.Version,
			"policy_fingerprint", p.fingerprint,
			"model", resp.Model,
			"finish_reason", resp.FinishReason,
		)
		return Output{}, err
	}

	p.logger.DebugContext(ctx, "generated review",
		"policy_version", p.policy.Version,
		"policy_fingerprint", p.fingerprint,
		"model", resp.Model,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
