package config

// ObservabilityConfig controls OTLP log export, mirroring the teacher's
// pkg/observability.Config.
type ObservabilityConfig struct {
	Enabled     bool   `env:"TESTORCH_OTEL_ENABLED" default:"false"`
	ServiceName string `env:"TESTORCH_OTEL_SERVICE_NAME" default:"testorch"`
}
