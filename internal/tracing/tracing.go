// Package tracing provides OpenTelemetry distributed tracing for the
// Router Engine and Control API (SPEC_FULL.md §10.5), plus a small set of
// attribute helpers so every span the gateway emits carries the same
// selection/invocation vocabulary instead of ad-hoc attribute.String
// calls scattered across callers.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracerProvider *sdktrace.TracerProvider
	activeTracer   trace.Tracer
)

// Init wires a tracer provider for serviceName exporting to endpoint. An
// empty endpoint disables tracing entirely, returning a no-op cleanup, so
// the gateway runs without an OTel collector in dev.
func Init(serviceName, endpoint string, samplingRate float64) (func(), error) {
	if endpoint == "" {
		return func() {}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	var exp sdktrace.SpanExporter
	if isGRPC(endpoint) {
		exp, err = otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	} else {
		exp, err = otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case samplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case samplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(samplingRate)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	activeTracer = otel.Tracer(serviceName)

	return func() {
		if tracerProvider != nil {
			_ = tracerProvider.Shutdown(context.Background())
		}
	}, nil
}

func tracer() trace.Tracer {
	if activeTracer == nil {
		return trace.NewNoopTracerProvider().Tracer("noop")
	}
	return activeTracer
}

// StartSpan starts a span named name under ctx's current span, if any.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, opts...)
}

// StartSpanWithAttributes starts a span carrying the given attributes.
func StartSpanWithAttributes(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// TraceIDFromContext returns ctx's trace ID, or "" outside any span.
func TraceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// AnnotateSelection records the Hybrid Selector's outcome on the current
// router.execute span, so a trace shows which method won and whether the
// pipeline fell back without having to join back to the Selection record.
func AnnotateSelection(span trace.Span, method string, confidence float64, lowConfidence bool) {
	span.SetAttributes(
		attribute.String("gateway.selection.method", method),
		attribute.Float64("gateway.selection.advisor_confidence", confidence),
		attribute.Bool("gateway.selection.low_confidence", lowConfidence),
	)
}

// AnnotateInvocation records which service/tool pair the span ultimately
// invoked and whether a wake was required to reach it.
func AnnotateInvocation(span trace.Span, serviceName, toolName string, wakeRequired bool) {
	span.SetAttributes(
		attribute.String("gateway.target.service", serviceName),
		attribute.String("gateway.target.tool", toolName),
		attribute.Bool("gateway.wake_required", wakeRequired),
	)
}

func isGRPC(endpoint string) bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "grpc" ||
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL") == "grpc"
}
