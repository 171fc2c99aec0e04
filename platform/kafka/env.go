package kafka

import (
	"errors"

	"github.com/caarlos0/env/v10"
)

// LoadEnv загружает конфигурацию из переменных окружения (caarlos0/env/v10)
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate проверяет конфигурацию; брокеры обязательны только при включённом брокере
func (c Config) Validate() error {
	if c.Enabled && len(c.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when BROKER_ENABLED=true")
	}
	return nil
}
