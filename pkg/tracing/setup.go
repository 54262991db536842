package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// Exporter names accepted by Setup
const (
	ExporterNone     = "none"
	ExporterConsole  = "console"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// Config selects how spans are exported
type Config struct {
	ServiceName    string
	ServiceVersion string
	Exporter       string
	Endpoint       string
	Insecure       bool
	SampleRatio    float64
}

// Setup installs a global tracer provider and returns its shutdown function.
// With ExporterNone spans are still created so trace ids reach logs and
// error responses.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		protocol := exporters.ProtocolGRPC
		if cfg.Exporter == ExporterOTLPHTTP {
			protocol = exporters.ProtocolHTTP
		}
		exp, err := exporters.NewOTLP(ctx, exporters.OTLPConfig{
			Endpoint: cfg.Endpoint,
			Protocol: protocol,
			Insecure: cfg.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		exporter = exp
	case "", ExporterNone, ExporterConsole:
		exporter = &exporters.ConsoleExporter{}
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	SetTracer(provider.Tracer(cfg.ServiceName))

	return provider.Shutdown, nil
}
