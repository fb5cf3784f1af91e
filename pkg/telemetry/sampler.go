package telemetry

import (
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/sdk/trace"
)

// baseSamplers are the non-parent-based sampler kinds
// OTEL_TRACES_SAMPLER can name directly. A "parentbased_" prefix on
// the configured name wraps whichever of these it names in
// trace.ParentBased instead of introducing a seventh case.
var baseSamplers = map[string]func(cfg *Config) trace.Sampler{
	"always_on":  func(*Config) trace.Sampler { return trace.AlwaysSample() },
	"always_off": func(*Config) trace.Sampler { return trace.NeverSample() },
	"traceidratio": func(cfg *Config) trace.Sampler {
		return trace.TraceIDRatioBased(parseRatio(cfg.SamplerArg))
	},
}

// createSampler builds the trace.Sampler named by cfg.Sampler,
// defaulting to AlwaysSample (full sampling) for an empty or
// unrecognized value.
func createSampler(cfg *Config) trace.Sampler {
	name := cfg.Sampler
	parentBased := strings.HasPrefix(name, "parentbased_")
	if parentBased {
		name = strings.TrimPrefix(name, "parentbased_")
	}

	build, ok := baseSamplers[name]
	if !ok {
		return trace.AlwaysSample()
	}

	sampler := build(cfg)
	if parentBased {
		return trace.ParentBased(sampler)
	}
	return sampler
}

// parseRatio parses a sampling ratio string to float64, clamped to
// [0, 1] and defaulting to 1.0 (full sampling) if s is empty or
// unparseable.
func parseRatio(s string) float64 {
	if s == "" {
		return 1.0
	}

	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1.0
	default:
		return ratio
	}
}
