// Package obstel wires OpenTelemetry tracing for the import pipeline and
// its outbound calls, grounded on the teacher's telemetry.OTelProvider
// (telemetry/otel.go) but trimmed to the exporter this module actually
// carries: stdout/stdouttrace rather than OTLP/HTTP, since decant has no
// collector dependency in its stack (DESIGN.md).
package obstel

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide TracerProvider and the single tracer
// decant's subsystems pull spans from.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer

	shutdownOnce sync.Once
}

// Config controls span export. Writer defaults to io.Discard when nil —
// spans are then recorded and sampled but never printed. PrettyPrint
// indents the exported JSON.
type Config struct {
	ServiceName string
	Writer      io.Writer
	PrettyPrint bool
}

// NewProvider builds a Provider exporting spans via stdouttrace, batched
// through an sdktrace.BatchSpanProcessor the same way the teacher batches
// OTLP exports (telemetry/otel.go).
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "decant"
	}
	writer := cfg.Writer
	if writer == nil {
		writer = io.Discard
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(writer)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

// Tracer returns the shared tracer every subsystem should use to start
// spans for its operations.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// StartSpan starts a span named op, tagging it with attrs. Callers defer
// the returned function to end the span and, on error, mark it failed —
// the teacher's async_span.go follows the same start/defer-end shape.
func (p *Provider) StartSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := p.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Shutdown flushes and stops the trace provider; safe to call more than
// once.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		err = p.tp.Shutdown(ctx)
	})
	return err
}
