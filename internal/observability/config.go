package observability

import (
	"io"
	"os"
	"time"

	"cvmatch/internal/config"
)

const defaultCollectionInterval = 15 * time.Second

// ObservabilityConfig is the resolved telemetry configuration
type ObservabilityConfig struct {
	ServiceName     string
	ServiceVersion  string
	ServiceInstance string
	Enabled         bool

	Tracing    bool
	SampleRate float64

	Metrics  bool
	Interval time.Duration

	ConsoleOutput bool
	PrettyPrint   bool
	// Console receives console telemetry. Nil means stderr, which keeps
	// command output on stdout parseable.
	Console io.Writer

	OTLP       config.OTLPConfig
	Prometheus PrometheusConfig
}

func (c ObservabilityConfig) console() io.Writer {
	if c.Console != nil {
		return c.Console
	}
	return os.Stderr
}

func (c ObservabilityConfig) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return defaultCollectionInterval
}

// GetObservabilityConfig resolves the telemetry settings of cfg. The
// tracing sample rate wins over the global one.
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{
			ServiceName:    "cvmatch",
			ServiceVersion: version,
			Enabled:        true,
			Tracing:        true,
			SampleRate:     1.0,
			Metrics:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			Prometheus:     GetPrometheusConfig(nil),
		}
	}

	obs := cfg.Observability
	resolved := ObservabilityConfig{
		ServiceName:     obs.ServiceName,
		ServiceVersion:  obs.ServiceVersion,
		ServiceInstance: obs.ServiceInstance,
		Enabled:         obs.Enabled,
		Tracing:         obs.Tracing.Enabled,
		SampleRate:      obs.SampleRate,
		Metrics:         obs.Metrics.Enabled,
		Interval:        obs.Metrics.CollectionInterval,
		ConsoleOutput:   obs.ConsoleOutput,
		PrettyPrint:     obs.ConsoleOutput,
		OTLP:            obs.OTLP,
		Prometheus:      GetPrometheusConfig(cfg),
	}
	if resolved.ServiceName == "" {
		resolved.ServiceName = "cvmatch"
	}
	if resolved.ServiceVersion == "" {
		resolved.ServiceVersion = version
	}
	if obs.Tracing.SampleRate > 0 {
		resolved.SampleRate = obs.Tracing.SampleRate
	}
	return resolved
}
