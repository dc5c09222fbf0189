package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`

	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
	NATSURL     string `env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
	RedisAddr   string `env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`

	// InstanceID fences saga leases and names the relay's outbox source;
	// every running process needs a distinct value.
	InstanceID string `env:"INSTANCE_ID" env-default:""`

	RelayBatchSize    int           `env:"RELAY_BATCH_SIZE" env-default:"1000"`
	RelayWorkers      int           `env:"RELAY_WORKERS" env-default:"4"`
	RelayMaxBatches   int           `env:"RELAY_MAX_CONCURRENT_BATCHES" env-default:"8"`
	RelayFanOut       int           `env:"RELAY_FAN_OUT" env-default:"4"`
	RelayPollInterval time.Duration `env:"RELAY_POLL_INTERVAL" env-default:"1s"`
	RelayErrorBackoff time.Duration `env:"RELAY_ERROR_BACKOFF" env-default:"5s"`

	RecoveryInterval       time.Duration `env:"RECOVERY_INTERVAL" env-default:"30s"`
	RecoveryStalenessGrace time.Duration `env:"RECOVERY_STALENESS_GRACE" env-default:"5m"`
	RecoveryLeaseTTL       time.Duration `env:"RECOVERY_LEASE_TTL" env-default:"2m"`
	ReservationSweep       time.Duration `env:"RESERVATION_SWEEP_INTERVAL" env-default:"1m"`

	BreakerThreshold   int           `env:"BREAKER_FAILURE_THRESHOLD" env-default:"5"`
	BreakerCooldown    time.Duration `env:"BREAKER_COOLDOWN" env-default:"30s"`
	BreakerHalfOpenMax int           `env:"BREAKER_HALF_OPEN_MAX" env-default:"1"`
}

func Load() (*Config, error) {
	var cfg Config

	// ReadEnv only: all deploy targets configure through environment
	// variables, there is no config file.
	err := cleanenv.ReadEnv(&cfg)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return &cfg, nil
}
