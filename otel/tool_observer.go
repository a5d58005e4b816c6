package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// ToolObserver records tool invocations and Oracle requests into OpenTelemetry.
type ToolObserver struct {
	tracer trace.Tracer
	inst   *instruments
}

// NewToolObserver creates a tool observer bound to the provided meter/tracer.
// tracer may be nil, in which case only metrics are recorded.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	inst, err := newInstruments(meter)
	if err != nil {
		return nil, err
	}
	return &ToolObserver{tracer: tracer, inst: inst}, nil
}

// ObserveInvoke records one dispatched tool call.
func (o *ToolObserver) ObserveInvoke(observation tool.ToolInvokeObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.inst.invocations.Add(ctx, 1, options)
	o.inst.toolLatency.Record(ctx, seconds(observation.DurationMS), options)

	o.span(ctx, "tool.invoke", observation.DurationMS, observation.ErrorCode, attrs)
}

// ObserveUpstream records one logical Oracle request.
func (o *ToolObserver) ObserveUpstream(observation tool.UpstreamObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", observation.Operation),
		attribute.Bool("success", observation.Success),
	}
	if observation.StatusCode != 0 {
		attrs = append(attrs, attribute.Int("status_code", observation.StatusCode))
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.inst.upstreamRequests.Add(ctx, 1, options)
	o.inst.upstreamLatency.Record(ctx, seconds(observation.DurationMS), options)
	o.inst.upstreamAttempts.Record(ctx, int64(observation.Attempts), options)

	spanAttrs := append(attrs, attribute.Int("attempts", observation.Attempts))
	o.span(ctx, "oracle.request", observation.DurationMS, observation.ErrorCode, spanAttrs)
}

// ObserveRetry records one retry of an Oracle request.
func (o *ToolObserver) ObserveRetry(observation tool.UpstreamRetryObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", observation.Operation),
		attribute.Int("attempt", observation.Attempt),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}
	o.inst.upstreamRetries.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// span records a completed operation as a span ending now and starting
// durationMS earlier.
func (o *ToolObserver) span(ctx context.Context, name string, durationMS int64, errorCode string, attrs []attribute.KeyValue) {
	if o.tracer == nil {
		return
	}
	end := time.Now()
	start := end.Add(-time.Duration(durationMS) * time.Millisecond)
	_, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...), trace.WithTimestamp(start))
	if errorCode != "" {
		span.SetStatus(codes.Error, errorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

func seconds(durationMS int64) float64 {
	return float64(time.Duration(durationMS)*time.Millisecond) / float64(time.Second)
}

var _ tool.Observer = (*ToolObserver)(nil)
