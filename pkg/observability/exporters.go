package observability

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Trace exporter kinds accepted by NewTraceExporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterSQLite = "sqlite"
)

// ExporterConfig selects and configures a span exporter.
type ExporterConfig struct {
	Kind string
	// OTLPEndpoint is a full URL such as http://localhost:4318/v1/traces.
	OTLPEndpoint string
	// Writer receives stdout spans.
	Writer io.Writer
	// DB stores spans for the sqlite exporter.
	DB *sql.DB
}

// NewTraceExporter builds the exporter named by cfg.Kind. It returns nil
// for ExporterNone.
func NewTraceExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Kind {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Writer != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
		}
		return stdouttrace.New(opts...)
	case ExporterOTLP:
		if cfg.OTLPEndpoint == "" {
			return nil, fmt.Errorf("otlp exporter needs an endpoint")
		}
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	case ExporterSQLite:
		return NewSQLiteSpanExporter(ctx, cfg.DB)
	}
	return nil, fmt.Errorf("unknown trace exporter %q", cfg.Kind)
}
