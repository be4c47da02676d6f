package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
var (
	AttrOperation    = attribute.Key("caseguard.operation")
	AttrOutcome      = attribute.Key("caseguard.outcome")
	AttrTier         = attribute.Key("caseguard.verdict.tier")
	AttrSource       = attribute.Key("caseguard.verdict.source")
	AttrRule         = attribute.Key("caseguard.rule.id")
	AttrAdvisory     = attribute.Key("caseguard.advisory.id")
	AttrTableVersion = attribute.Key("caseguard.table.version")
)

// Metric names.
const (
	MetricOperations   = "caseguard.operations"
	MetricDuration     = "caseguard.operation.duration"
	MetricInFlight     = "caseguard.operations.in_flight"
	MetricVerdicts     = "caseguard.verdicts"
	MetricRuleHits     = "caseguard.rule_hits"
	MetricAdvisoryHits = "caseguard.advisory_hits"
)

type instruments struct {
	operations   metric.Int64Counter
	duration     metric.Float64Histogram
	inFlight     metric.Int64UpDownCounter
	verdicts     metric.Int64Counter
	ruleHits     metric.Int64Counter
	advisoryHits metric.Int64Counter
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		in  instruments
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&in.operations, MetricOperations, "Operations by name and outcome"},
		{&in.verdicts, MetricVerdicts, "Final classifications by tier and deciding layer"},
		{&in.ruleHits, MetricRuleHits, "Decision table rules that fired"},
		{&in.advisoryHits, MetricAdvisoryHits, "Documentation advisories that fired"},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	if in.duration, err = m.Float64Histogram(MetricDuration,
		metric.WithDescription("Operation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricDuration, err)
	}
	if in.inFlight, err = m.Int64UpDownCounter(MetricInFlight,
		metric.WithDescription("Operations currently running"),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricInFlight, err)
	}
	return &in, nil
}

// TrackOperation opens a span and counts one operation. The returned
// function must be called once with the operation's error.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	base := metric.WithAttributes(append([]attribute.KeyValue{AttrOperation.String(name)}, attrs...)...)
	p.metrics.inFlight.Add(ctx, 1, base)

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		p.metrics.inFlight.Add(ctx, -1, base)
		p.metrics.duration.Record(ctx, time.Since(start).Seconds(), base)
		p.metrics.operations.Add(ctx, 1, base, metric.WithAttributes(AttrOutcome.String(outcome)))
		span.End()
	}
}

// RecordVerdict counts a final classification and each rule behind it.
func (p *Provider) RecordVerdict(ctx context.Context, tier, source string, rules []string) {
	p.metrics.verdicts.Add(ctx, 1, metric.WithAttributes(AttrTier.String(tier), AttrSource.String(source)))
	for _, r := range rules {
		p.metrics.ruleHits.Add(ctx, 1, metric.WithAttributes(AttrRule.String(r)))
	}
}

// RecordAdvisories counts each advisory that fired.
func (p *Provider) RecordAdvisories(ctx context.Context, ids []string) {
	for _, id := range ids {
		p.metrics.advisoryHits.Add(ctx, 1, metric.WithAttributes(AttrAdvisory.String(id)))
	}
}

// AddSpanEvent annotates the span in ctx, if any.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
