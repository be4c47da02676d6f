// Package review is the entry point for reviewing one clinical note. It
// validates the input, checks access, runs the rule layer, asks the
// generator for the narrative and reconciles the two.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/focusforward/caseguard/pkg/access"
	"github.com/focusforward/caseguard/pkg/advisory"
	"github.com/focusforward/caseguard/pkg/extract"
	"github.com/focusforward/caseguard/pkg/narrative"
	"github.com/focusforward/caseguard/pkg/observability"
	"github.com/focusforward/caseguard/pkg/privacy"
	"github.com/focusforward/caseguard/pkg/reconcile"
	"github.com/focusforward/caseguard/pkg/rules"
)

// ReviewResult is the externally visible outcome of a review.
type ReviewResult = reconcile.ReviewResult

// Config bounds review input.
type Config struct {
	MinLength int
	MaxLength int
	MaxHints  int
	// GenerationTimeout bounds the single generation call. Zero leaves the
	// caller's deadline in charge.
	GenerationTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinLength:         5,
		MaxLength:         3000,
		MaxHints:          10,
		GenerationTimeout: 30 * time.Second,
	}
}

// Request is one review. Email is the caller identity; when set, access is
// checked before any generation.
type Request struct {
	Note  string
	Hints []string
	Email string
}

// Classification is the rule-layer view of a note, produced without any
// generation call.
type Classification struct {
	Features   extract.FeatureSet  `json:"features"`
	Verdict    rules.Verdict       `json:"verdict"`
	Pending    []string            `json:"pending_investigations"`
	Advisories []advisory.Advisory `json:"advisories"`
}

// Service reviews notes. It holds no per-request state.
type Service struct {
	cfg        Config
	extractor  extract.Extractor
	table      *rules.Table
	advisories *advisory.Evaluator
	producer   narrative.Producer
	access     access.Checker
	obs        *observability.Provider
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithConfig(cfg Config) Option { return func(s *Service) { s.cfg = cfg } }

func WithExtractor(e extract.Extractor) Option { return func(s *Service) { s.extractor = e } }

func WithTable(t *rules.Table) Option { return func(s *Service) { s.table = t } }

func WithAdvisories(e *advisory.Evaluator) Option { return func(s *Service) { s.advisories = e } }

// WithAccess sets the grant checker. Without one, any request carrying an
// identity is denied.
func WithAccess(c access.Checker) Option { return func(s *Service) { s.access = c } }

func WithObservability(p *observability.Provider) Option { return func(s *Service) { s.obs = p } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New builds a Service around producer.
func New(producer narrative.Producer, opts ...Option) (*Service, error) {
	if producer == nil {
		return nil, fmt.Errorf("review: producer is required")
	}
	s := &Service{
		cfg:       DefaultConfig(),
		extractor: extract.NewLexical(),
		table:     rules.Canonical(),
		producer:  producer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MinLength < 1 || s.cfg.MaxLength < s.cfg.MinLength {
		return nil, fmt.Errorf("review: invalid note bounds %d..%d", s.cfg.MinLength, s.cfg.MaxLength)
	}
	if s.advisories == nil {
		ev, err := advisory.NewEvaluator(nil, s.table)
		if err != nil {
			return nil, fmt.Errorf("review: default advisories: %w", err)
		}
		s.advisories = ev
	}
	if s.obs == nil {
		p, err := observability.New(context.Background(), nil)
		if err != nil {
			return nil, fmt.Errorf("review: observability: %w", err)
		}
		s.obs = p
	}
	s.logger = s.logger.With("component", "review")
	return s, nil
}

// Validate checks the note bounds and hints, returning the trimmed note
// and the non-empty hints.
func (s *Service) Validate(note string, hints []string) (string, []string, error) {
	trimmed := strings.TrimSpace(note)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return "", nil, &ValidationError{Reason: ReasonEmpty, Limit: s.cfg.MinLength}
	case n < s.cfg.MinLength:
		return "", nil, &ValidationError{Reason: ReasonTooShort, Length: n, Limit: s.cfg.MinLength}
	case n > s.cfg.MaxLength:
		return "", nil, &ValidationError{Reason: ReasonTooLong, Length: n, Limit: s.cfg.MaxLength}
	}

	kept := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = strings.TrimSpace(h); h != "" {
			kept = append(kept, h)
		}
	}
	if s.cfg.MaxHints > 0 && len(kept) > s.cfg.MaxHints {
		return "", nil, &ValidationError{Reason: ReasonHints, Length: len(kept), Limit: s.cfg.MaxHints}
	}
	return trimmed, kept, nil
}

// Classify runs only the rule layer.
func (s *Service) Classify(ctx context.Context, note string) (Classification, error) {
	trimmed, _, err := s.Validate(note, nil)
	if err != nil {
		return Classification{}, err
	}
	c := s.classify(ctx, trimmed)
	s.obs.RecordVerdict(ctx, string(c.Verdict.Tier), string(c.Verdict.Source), ruleNames(c.Verdict.Rules))
	return c, nil
}

func (s *Service) classify(ctx context.Context, note string) Classification {
	fs := s.extractor.Extract(note)
	ev := s.table.Evaluate(fs)

	advs, err := s.advisories.Evaluate(note, fs)
	if err != nil {
		// Advisories only enrich the context; the verdict stands without them.
		s.logger.WarnContext(ctx, "advisory evaluation failed", "error", err)
		advs = []advisory.Advisory{}
	}
	ids := make([]string, len(advs))
	for i, a := range advs {
		ids[i] = a.ID
	}
	s.obs.RecordAdvisories(ctx, ids)

	return Classification{Features: fs, Verdict: ev.Verdict, Pending: ev.Pending, Advisories: advs}
}

// Review runs the full pipeline for req.
func (s *Service) Review(ctx context.Context, req Request) (result ReviewResult, err error) {
	ctx, finish := s.obs.TrackOperation(ctx, "review",
		observability.AttrTableVersion.String(s.table.Version().String()))
	defer func() { finish(err) }()

	note, hints, err := s.Validate(req.Note, req.Hints)
	if err != nil {
		return ReviewResult{}, err
	}

	if req.Email != "" {
		if s.access == nil || !s.access.HasActiveAccess(ctx, req.Email) {
			s.logger.InfoContext(ctx, "review denied", "email", privacy.Email(req.Email))
			return ReviewResult{}, ErrAccessDenied
		}
	}

	c := s.classify(ctx, note)
	ev := rules.Evaluation{Verdict: c.Verdict, Pending: c.Pending}
	nctx := narrative.ContextFor(ev, advisory.Messages(c.Advisories), hints)

	genCtx := ctx
	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}
	out, err := s.producer.Produce(genCtx, note, nctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "generation failed",
			"note", privacy.Note(note), "tier", c.Verdict.Tier, "error", err)
		return ReviewResult{}, &UpstreamError{Err: err}
	}
	if err := out.Check(); err != nil {
		s.logger.ErrorContext(ctx, "generation rejected",
			"note", privacy.Note(note), "tier", c.Verdict.Tier, "error", err)
		return ReviewResult{}, &UpstreamError{Err: err}
	}

	result = reconcile.Reconcile(c.Verdict, c.Pending, out)

	source := rules.SourceGenerative
	if c.Verdict.Determined() {
		source = rules.SourceRule
	}
	s.obs.RecordVerdict(ctx, string(result.Classification), string(source), ruleNames(c.Verdict.Rules))
	observability.AddSpanEvent(ctx, "review.reconciled",
		observability.AttrTier.String(string(result.Classification)),
		observability.AttrSource.String(string(source)),
		attribute.Int("caseguard.anchors", len(result.MissingAnchors)),
	)
	s.logger.InfoContext(ctx, "review completed",
		"note", privacy.Note(note),
		"classification", result.Classification,
		"source", source,
		"rules", c.Verdict.Rules,
		"pending", len(c.Pending),
		"advisories", len(c.Advisories),
		"anchors", len(result.MissingAnchors),
	)
	return result, nil
}

func ruleNames(ids []rules.RuleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
