package exporters

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Protocols accepted by NewOTLP
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

const defaultTimeout = 10 * time.Second

// OTLPConfig points span export at a collector
type OTLPConfig struct {
	Endpoint string // host:port, 4317 for gRPC and 4318 for HTTP
	Protocol string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}

// NewOTLP creates an OTLP span exporter over gRPC or HTTP
func NewOTLP(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTimeout(cfg.Timeout),
			otlptracegrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithTimeout(cfg.Timeout),
			otlptracehttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.Protocol)
}
