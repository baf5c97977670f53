package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL          string `env:"RABBITMQ_URL,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	WebhookTargetURL     string `env:"WEBHOOK_TARGET_URL"`
	RateLimitPerSec      int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY,default=16"`
	CleanupPageSize      int    `env:"CLEANUP_PAGE_SIZE,default=100"`
	NotifyProgress       bool   `env:"NOTIFY_PROGRESS,default=false"`
	OutboxScanIntervalMs int    `env:"OUTBOX_SCAN_INTERVAL_MS,default=1000"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
