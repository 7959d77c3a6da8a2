// Package observability wires OpenTelemetry tracing for the agent runtime.
// With no OTLP endpoint configured every span is a no-op, so the engine can
// instrument turns, model calls, and tool executions unconditionally.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures the OTLP trace export.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP collector endpoint (e.g. "localhost:4317").
	// Empty disables tracing.
	Endpoint string

	// Protocol selects the exporter transport: "grpc" (default) or "http".
	Protocol string

	// Insecure disables TLS on the collector connection.
	Insecure bool
}

// Tracer wraps an OpenTelemetry tracer. A nil *Tracer is valid and produces
// no-op spans.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a tracer and its shutdown func. With an empty endpoint (or
// a failed exporter init) it returns a no-op tracer whose shutdown does
// nothing.
func NewTracer(ctx context.Context, cfg TraceConfig) (*Tracer, func(context.Context) error) {
	noShutdown := func(context.Context) error { return nil }
	if cfg.ServiceName == "" {
		cfg.ServiceName = "myclaw"
	}
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noShutdown
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		slog.Warn("observability: otlp exporter init failed, tracing disabled", "error", err)
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noShutdown
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	t := &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}
	return t, provider.Shutdown
}

// Start opens a span. Safe on a nil tracer.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartTurn opens the root span for one agent turn.
func (t *Tracer) StartTurn(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return t.Start(ctx, "turn", attribute.String("session.id", sessionID))
}

// StartModelCall opens a span for one provider Chat call.
func (t *Tracer) StartModelCall(ctx context.Context, provider, model string, step int) (context.Context, trace.Span) {
	return t.Start(ctx, "llm."+provider,
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
		attribute.Int("turn.step", step),
	)
}

// StartTool opens a span for one tool execution.
func (t *Tracer) StartTool(ctx context.Context, tool string, step int) (context.Context, trace.Span) {
	return t.Start(ctx, "tool."+tool,
		attribute.String("tool.name", tool),
		attribute.Int("turn.step", step),
	)
}

// RecordError marks the span failed. Safe on nil errors.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
