package observability

// Config controls OpenTelemetry traces, metrics and propagation.
type Config struct {
	// Enabled exports to an OTLP collector. Disabled installs noop providers.
	Enabled bool
	// OTLPEndpoint is the collector gRPC address, e.g. "127.0.0.1:4317".
	OTLPEndpoint string
	// SamplingRatio is the fraction of traces kept (0..1).
	SamplingRatio float64

	ServiceName           string
	DeploymentEnvironment string
	ServiceVersion        string
}
