// Package telemetry provides OpenTelemetry span instrumentation of
// compilation pipeline phases.
package telemetry

import (
	"os"
	"strconv"
	"strings"
)

// Config holds OpenTelemetry configuration loaded from environment
// variables.
type Config struct {
	// Enabled indicates whether OpenTelemetry tracing is enabled.
	// Loaded from OTEL_ENABLED environment variable.
	Enabled bool

	// ServiceName is the name of the service.
	// Loaded from OTEL_SERVICE_NAME, defaults to "corebackend".
	ServiceName string

	// ServiceVersion is the version of the service.
	// Loaded from OTEL_SERVICE_VERSION, defaults to "unknown".
	ServiceVersion string

	// Endpoint is the OTLP collector endpoint.
	// Loaded from OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string

	// Protocol is the OTLP protocol (grpc or http/protobuf).
	// Loaded from OTEL_EXPORTER_OTLP_PROTOCOL, defaults to "grpc".
	Protocol string

	// Headers contains custom headers for the OTLP exporter (e.g.,
	// Authorization). Loaded from OTEL_EXPORTER_OTLP_HEADERS, in
	// "key1=value1,key2=value2" form.
	Headers map[string]string

	// Insecure indicates whether to use a plaintext connection.
	// Loaded from OTEL_EXPORTER_OTLP_INSECURE.
	Insecure bool

	// Sampler is the sampler type: always_on, always_off,
	// traceidratio, or one of those three prefixed with
	// "parentbased_". Loaded from OTEL_TRACES_SAMPLER, defaults to
	// always_on (full sampling).
	Sampler string

	// SamplerArg is the sampler argument (e.g., ratio for
	// traceidratio). Loaded from OTEL_TRACES_SAMPLER_ARG.
	SamplerArg string

	// ResourceAttrs contains additional resource attributes, in
	// "key1=value1,key2=value2" form. Loaded from
	// OTEL_RESOURCE_ATTRIBUTES.
	ResourceAttrs map[string]string
}

// LoadFromEnv loads configuration from the standard OTEL_* environment
// variables.
func LoadFromEnv() *Config {
	return &Config{
		Enabled:        envBool("OTEL_ENABLED", false),
		ServiceName:    envOr("OTEL_SERVICE_NAME", "corebackend"),
		ServiceVersion: envOr("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parsePairs(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		Sampler:        os.Getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
		ResourceAttrs:  parsePairs(os.Getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool parses key with strconv.ParseBool, which accepts "1"/"t"/
// "TRUE"/... as well as "true", falling back to fallback when the
// variable is unset or unparseable.
func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// parsePairs parses a comma-separated "key1=value1,key2=value2" list,
// splitting each pair on its first '=' so a value may itself contain
// one.
func parsePairs(raw string) map[string]string {
	result := make(map[string]string)
	if raw == "" {
		return result
	}

	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		result[k] = strings.TrimSpace(v)
	}
	return result
}
