package kafka

// Config общая конфигурация подключения к Kafka.
// Доменные топики задаются в конфиге каждого сервиса.
type Config struct {
	// Enabled выключатель брокера. При false сервисы не поднимают подписки,
	// а продюсеры переключаются на синхронный fallback.
	Enabled bool `env:"BROKER_ENABLED" envDefault:"true"`
	// Brokers список брокеров через запятую:
	//   - локальная разработка (go run): localhost:19092
	//   - запуск в Docker: kafka:9092
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
}

// DefaultConfig конфигурация для локальной разработки
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Brokers: []string{"localhost:19092"},
	}
}
