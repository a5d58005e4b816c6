package otel

import (
	"go.opentelemetry.io/otel/metric"
)

// Instrument names recorded by ToolObserver.
const (
	MetricToolInvocations   = "mcp_oracle_scm.tool.invocations"
	MetricToolLatency       = "mcp_oracle_scm.tool.latency"
	MetricUpstreamRequests  = "mcp_oracle_scm.upstream.requests"
	MetricUpstreamRetries   = "mcp_oracle_scm.upstream.retries"
	MetricUpstreamLatency   = "mcp_oracle_scm.upstream.latency"
	MetricUpstreamAttempts  = "mcp_oracle_scm.upstream.attempts"
	instrumentationScopeApp = "github.com/petal-labs/mcp-oracle-scm"
)

type instruments struct {
	invocations      metric.Int64Counter
	toolLatency      metric.Float64Histogram
	upstreamRequests metric.Int64Counter
	upstreamRetries  metric.Int64Counter
	upstreamLatency  metric.Float64Histogram
	upstreamAttempts metric.Int64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	invocations, err := meter.Int64Counter(MetricToolInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	toolLatency, err := meter.Float64Histogram(MetricToolLatency,
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	upstreamRequests, err := meter.Int64Counter(MetricUpstreamRequests,
		metric.WithDescription("Number of logical Oracle requests"),
	)
	if err != nil {
		return nil, err
	}
	upstreamRetries, err := meter.Int64Counter(MetricUpstreamRetries,
		metric.WithDescription("Number of Oracle request retries"),
	)
	if err != nil {
		return nil, err
	}
	upstreamLatency, err := meter.Float64Histogram(MetricUpstreamLatency,
		metric.WithDescription("Oracle request latency in seconds, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	upstreamAttempts, err := meter.Int64Histogram(MetricUpstreamAttempts,
		metric.WithDescription("Attempts per logical Oracle request"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{
		invocations:      invocations,
		toolLatency:      toolLatency,
		upstreamRequests: upstreamRequests,
		upstreamRetries:  upstreamRetries,
		upstreamLatency:  upstreamLatency,
		upstreamAttempts: upstreamAttempts,
	}, nil
}
