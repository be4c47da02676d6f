// Package observability wires OpenTelemetry traces and metrics for review
// and classification.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/focusforward/caseguard"

// Config selects where telemetry goes. When Enabled is false nothing is
// exported and instruments come from the global no-op providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is a host:port gRPC collector address.
	OTLPEndpoint string
	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate     float64
	ExportInterval time.Duration
	Enabled        bool
	Insecure       bool
}

func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "caseguard",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		ExportInterval: 15 * time.Second,
	}
}

// Provider hands out the tracer and the review instruments.
type Provider struct {
	tracer  trace.Tracer
	metrics *instruments
	closers []func(context.Context) error
}

// New builds a Provider. Exporters are only dialled when cfg.Enabled.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := slog.Default().With("component", "observability")
	if !cfg.Enabled {
		logger.DebugContext(ctx, "telemetry disabled")
		return newProvider(otel.GetTracerProvider(), otel.GetMeterProvider(), cfg.ServiceVersion)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	tp, err := traceProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	mp, err := meterProvider(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	p, err := newProvider(tp, mp, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}
	p.closers = []func(context.Context) error{tp.Shutdown, mp.Shutdown}
	logger.InfoContext(ctx, "telemetry exporting",
		"endpoint", cfg.OTLPEndpoint, "sample_rate", cfg.SampleRate, "insecure", cfg.Insecure)
	return p, nil
}

func newProvider(tp trace.TracerProvider, mp metric.MeterProvider, version string) (*Provider, error) {
	m, err := newInstruments(mp.Meter(scope, metric.WithInstrumentationVersion(version)))
	if err != nil {
		return nil, fmt.Errorf("observability: instruments: %w", err)
	}
	return &Provider{
		tracer:  tp.Tracer(scope, trace.WithInstrumentationVersion(version)),
		metrics: m,
	}, nil
}

func traceProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	), nil
}

func meterProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	), nil
}

// Shutdown flushes exporters. It is a no-op for a disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c(ctx))
	}
	return errors.Join(errs...)
}

// Tracer returns the caseguard tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}
