// Package observability wires distributed tracing into the pipeline.
//
// Genkit already traces every generate and embed call through its own
// OpenTelemetry TracerProvider; this package registers an OTLP HTTP exporter
// on that provider so the spans reach a collector instead of being dropped.
//
// The collector endpoint is plain OTLP, so any backend works: an
// otel-collector sidecar, Jaeger with OTLP ingestion enabled, or a vendor
// agent listening on the standard 4318 port.
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vhoang/troly/internal/log"
)

// Config for trace export.
type Config struct {
	// Endpoint is the OTLP HTTP collector address, such as localhost:4318.
	// Empty leaves tracing disabled.
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
}

// Setup registers an OTLP exporter with Genkit's TracerProvider. Returns a
// shutdown function that flushes pending spans. Without a configured
// endpoint no exporter is registered and the shutdown is a no-op.
//
// Export failures degrade to a no-op: a chatbot that answers without traces
// beats one that refuses to start because the collector is down.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		logger.Debug("no OTLP endpoint configured, tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	// Genkit's TracerProvider reads the service identity from the standard
	// OTEL environment variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
