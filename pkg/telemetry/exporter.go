package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc/credentials/insecure"
)

// createExporter builds the OTLP trace exporter named by cfg.Protocol,
// defaulting to gRPC for anything other than an explicit http variant.
func createExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, error) {
	if isHTTPProtocol(cfg.Protocol) {
		return createHTTPExporter(ctx, cfg)
	}
	return createGRPCExporter(ctx, cfg)
}

func isHTTPProtocol(protocol string) bool {
	switch strings.ToLower(protocol) {
	case "http/protobuf", "http":
		return true
	default:
		return false
	}
}

// splitEndpoint strips a URL scheme from endpoint, since neither OTLP
// client option accepts one, and reports whether that scheme (or
// forcePlaintext) calls for a non-TLS connection.
func splitEndpoint(endpoint string, forcePlaintext bool) (host string, plaintext bool) {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), true
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), forcePlaintext
	default:
		return endpoint, forcePlaintext
	}
}

func createGRPCExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, error) {
	var opts []otlptracegrpc.Option

	plaintext := cfg.Insecure
	if cfg.Endpoint != "" {
		var host string
		host, plaintext = splitEndpoint(cfg.Endpoint, cfg.Insecure)
		opts = append(opts, otlptracegrpc.WithEndpoint(host))
	}
	if plaintext {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}

func createHTTPExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, error) {
	var opts []otlptracehttp.Option

	plaintext := cfg.Insecure
	if cfg.Endpoint != "" {
		var host string
		host, plaintext = splitEndpoint(cfg.Endpoint, cfg.Insecure)
		opts = append(opts, otlptracehttp.WithEndpoint(host))
	}
	if plaintext {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	return otlptracehttp.New(ctx, opts...)
}
