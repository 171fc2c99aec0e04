package observability

// Config конфигурация OpenTelemetry (traces + metrics + propagator).
// Поля читаются из env через caarlos0/env, поэтому структуру можно встраивать в конфиг сервиса.
type Config struct {
	// Enabled включить экспорт в OTLP collector
	Enabled bool `env:"OTEL_ENABLED" envDefault:"false"`
	// OTLPEndpoint адрес OTLP gRPC, например "127.0.0.1:4317" или "otel-collector:4317"
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"127.0.0.1:4317"`
	// SamplingRatio доля трасс для семплирования (0..1)
	SamplingRatio float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"1.0"`
	// ServiceName имя сервиса (checkout, notification, analytics)
	ServiceName string
	// DeploymentEnvironment окружение (local, docker)
	DeploymentEnvironment string
	// ServiceVersion опционально, например из build
	ServiceVersion string `env:"SERVICE_VERSION"`
}
