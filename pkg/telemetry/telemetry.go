// Package telemetry wires OpenTelemetry span export around
// internal/compiler.Pipeline's phases, configured entirely from the
// OTEL_* environment variables documented on Config.
//
// cmd/corebackend's root command calls Init once at startup and the
// pipeline calls StartPhase around each of its phases; when
// OTEL_ENABLED is unset, Init is a no-op and StartPhase hands back the
// SDK's own no-op span, so the pipeline never has to branch on whether
// tracing is actually live.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// tracerName identifies the pipeline's own tracer, distinct from any
// tracer a caller embedding this package registers for its own spans.
const tracerName = "github.com/corebackend/backend/internal/compiler"

// ShutdownFunc flushes and tears down the TracerProvider Init set up.
type ShutdownFunc func(ctx context.Context) error

// Init sets up the global TracerProvider from the environment and
// returns the function that shuts it down. It is safe to call more
// than once; only the first call builds a provider. If OTEL_ENABLED is
// not set, Init leaves the default no-op provider in place and returns
// a ShutdownFunc that does nothing.
func Init(ctx context.Context) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	cfg := loadConfig()
	if !cfg.Enabled {
		return noop, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return noop, err
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noop, err
	}

	sampler := createSampler(cfg)

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	}, nil
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the current telemetry configuration.
func GetConfig() *Config {
	return loadConfig()
}

// StartPhase starts a span named for one pipeline phase (e.g.
// "hir-build", "liveness", "regalloc", "codegen"), the unit
// internal/compiler.Pipeline.Run wraps each phase's Run call in. When
// tracing is disabled the returned span is the SDK's own no-op
// implementation, so callers never need to check Enabled() themselves.
func StartPhase(ctx context.Context, phase string) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, phase)
}

// loadConfig loads configuration once and caches it.
func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
