// Package otel wires OpenTelemetry providers and records tool invocations and
// Oracle requests as metrics and spans.
package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SetupConfig selects the service name and the optional OTLP/HTTP trace
// endpoint.
type SetupConfig struct {
	ServiceName  string
	OTLPEndpoint string
	// MetricReader is attached to the meter provider when set. Tests pass a
	// ManualReader here.
	MetricReader sdkmetric.Reader
	// SpanExporter replaces the OTLP exporter when set.
	SpanExporter sdktrace.SpanExporter
}

// Providers holds the SDK providers built by Setup.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Observer       *ToolObserver
}

// Setup builds tracer and meter providers, installs them globally and returns
// a ToolObserver bound to them. Without an endpoint or exporter spans are
// sampled but dropped.
func Setup(ctx context.Context, cfg SetupConfig) (*Providers, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "mcp-oracle-scm"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	exporter := cfg.SpanExporter
	if exporter == nil && strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		otlp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(cfg.OTLPEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("otel: create otlp exporter: %w", err)
		}
		exporter = otlp
	}
	if exporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.MetricReader != nil {
		metricOpts = append(metricOpts, sdkmetric.WithReader(cfg.MetricReader))
	}
	mp := sdkmetric.NewMeterProvider(metricOpts...)

	observer, err := NewToolObserver(mp.Meter(instrumentationScopeApp), tp.Tracer(instrumentationScopeApp))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("otel: create tool observer: %w", err), tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	otelapi.SetTracerProvider(tp)
	otelapi.SetMeterProvider(mp)
	return &Providers{TracerProvider: tp, MeterProvider: mp, Observer: observer}, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel: shutdown tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel: shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
