package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	NotifyFunctionURL string `env:"NOTIFY_FUNCTION_URL,required=true"`
	ResendAPIKey      string `env:"RESEND_API_KEY,required=true"`
	FromEmail         string `env:"FROM_EMAIL,default=leads@leadmarket.app"`
	MaxRetries        int    `env:"MAX_RETRIES,default=3"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=10"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=4"`
	SweepIntervalSec  int    `env:"SWEEP_INTERVAL_SEC,default=60"`
	SweepStalenessSec int    `env:"SWEEP_STALENESS_SEC,default=300"`
	SweepBatchSize    int    `env:"SWEEP_BATCH_SIZE,default=10"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func (c *Config) SweepStaleness() time.Duration {
	return time.Duration(c.SweepStalenessSec) * time.Second
}
