package telemetry

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled determines whether tracing is enabled
	// When false, a noop tracer is used
	Enabled bool

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns the CLI default: tracing off
func DefaultConfig() Config {
	return Config{
		ServiceName:    "portal",
		ServiceVersion: "dev",
		Enabled:        false,
		SampleRate:     1.0,
	}
}

// DebugConfig returns a configuration that records every span
func DebugConfig(version string) Config {
	return Config{
		ServiceName:    "portal",
		ServiceVersion: version,
		Enabled:        true,
		SampleRate:     1.0,
	}
}
