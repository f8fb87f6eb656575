package behavior

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/mediate/pipeline"
)

const (
	instrumentationName = "github.com/felixgeelhaar/mediate"
)

// OTelOption configures the OpenTelemetry behavior.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipRequests   map[string]bool
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the service name for telemetry.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipRequests names requests that are not traced.
func WithOTelSkipRequests(names ...string) OTelOption {
	return func(c *otelConfig) {
		for _, n := range names {
			c.skipRequests[n] = true
		}
	}
}

// OTel returns a behavior that adds OpenTelemetry tracing and metrics.
// It creates a span for each request and records request counts, latency and errors.
func OTel[Req, Resp any](opts ...OTelOption) pipeline.Behavior[Req, Resp] {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "mediate",
		skipRequests:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(
		instrumentationName,
		trace.WithInstrumentationVersion("1.0.0"),
	)

	meter := cfg.meterProvider.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion("1.0.0"),
	)

	// Create metrics instruments
	requestCounter, _ := meter.Int64Counter(
		"mediate.requests",
		metric.WithDescription("Total number of dispatched requests"),
		metric.WithUnit("{request}"),
	)

	requestDuration, _ := meter.Float64Histogram(
		"mediate.request.duration",
		metric.WithDescription("Duration of dispatched requests"),
		metric.WithUnit("ms"),
	)

	errorCounter, _ := meter.Int64Counter(
		"mediate.errors",
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"),
	)

	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		name := RequestName(req)

		// Skip tracing for certain requests
		if cfg.skipRequests[name] {
			return next(ctx)
		}

		ctx, span := tracer.Start(ctx, "mediate."+name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("mediate.request", name),
				attribute.String("service.name", cfg.serviceName),
			),
		)
		defer span.End()

		// Add request ID if present
		if reqID := RequestIDFromContext(ctx); reqID != "" {
			span.SetAttributes(attribute.String("mediate.request_id", reqID))
		}

		startTime := time.Now()

		attrs := []attribute.KeyValue{
			attribute.String("mediate.request", name),
			attribute.String("service.name", cfg.serviceName),
		}

		requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

		resp, err := next(ctx)

		duration := float64(time.Since(startTime).Microseconds()) / 1000
		requestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))

		if err != nil {
			outcome := Outcome(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("mediate.outcome", outcome))
			errorCounter.Add(ctx, 1, metric.WithAttributes(
				append(attrs, attribute.String("mediate.outcome", outcome))...,
			))
		} else {
			span.SetAttributes(attribute.String("mediate.outcome", OutcomeSuccess))
			span.SetStatus(codes.Ok, "")
		}

		return resp, err
	})
}

// SpanFromContext returns the current span from context.
// Returns a no-op span if no span is present.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// AnnotateSpan copies fields onto the current span as attributes.
// Values without a native attribute type are formatted with fmt.Sprint.
func AnnotateSpan(ctx context.Context, fields ...Field) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	for _, f := range fields {
		span.SetAttributes(fieldAttribute(f))
	}
}

func fieldAttribute(f Field) attribute.KeyValue {
	switch v := f.Value.(type) {
	case string:
		return attribute.String(f.Key, v)
	case int:
		return attribute.Int(f.Key, v)
	case int64:
		return attribute.Int64(f.Key, v)
	case float64:
		return attribute.Float64(f.Key, v)
	case bool:
		return attribute.Bool(f.Key, v)
	case []string:
		return attribute.StringSlice(f.Key, v)
	case time.Duration:
		return attribute.String(f.Key, v.String())
	default:
		return attribute.String(f.Key, fmt.Sprint(v))
	}
}
