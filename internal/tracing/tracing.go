// Package tracing wraps OpenTelemetry so CLI commands and MCP tool calls
// can open a span the way the original implementation wraps every command
// in a tracing::info_span!, without requiring a collector to be configured.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/cqlabs/cqs"

// Init installs a process-wide TracerProvider and returns a shutdown func
// to flush on exit. Spans are exported to stdout by default (no network
// requirement); setting OTEL_EXPORTER_OTLP_ENDPOINT switches to an
// OTLP/gRPC exporter pointed at that collector instead.
func Init() (func(context.Context) error, error) {
	exporter, err := newExporter(context.Background())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

// Tracer returns the package-wide tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span named name, mirroring a single
// tracing::info_span!(name).entered() call.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records err on the current span and marks it failed, if err
// is non-nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// CommandSpan starts a span for one CLI command invocation, named the way
// `cmd_<name>` spans are named in the original implementation.
func CommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("cmd_%s", cmdName),
		attribute.String("cqs.command", cmdName),
	)
}

// ToolSpan starts a span for one MCP tool invocation.
func ToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("mcp.%s", toolName),
		attribute.String("mcp.tool", toolName),
	)
}

// TraceID returns the active span's trace ID, or "" outside any span.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
