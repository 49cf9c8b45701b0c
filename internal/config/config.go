// Package config содержит логику чтения конфигурации сервиса printhub.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/allocator"
	"github.com/mmeshcher/printhub/internal/ledger"
)

// DefaultAuthSecret используется, если AUTH_SECRET не задан. Годится только для разработки.
const DefaultAuthSecret = "printhub-dev-secret"

// Config содержит параметры конфигурации сервиса printhub.
type Config struct {
	RunAddress           string `env:"RUN_ADDRESS"`
	DatabaseURI          string `env:"DATABASE_URI"`
	ObjectStorageAddress string `env:"OBJECT_STORAGE_ADDRESS"`
	RedisAddress         string `env:"REDIS_ADDRESS"`

	AuthSecret string `env:"AUTH_SECRET" envDefault:"printhub-dev-secret"`
	AdminEmail string `env:"ADMIN_EMAIL"`

	EarningPerOrder      decimal.Decimal `env:"EARNING_PER_ORDER" envDefault:"300"`
	PenaltyPerUnaccepted decimal.Decimal `env:"PENALTY_PER_UNACCEPTED" envDefault:"100"`

	AllocationMaxRetries   uint64        `env:"ALLOCATION_MAX_RETRIES" envDefault:"5"`
	AllocationBackoff      time.Duration `env:"ALLOCATION_BACKOFF" envDefault:"20ms"`
	StrictOrderTransitions bool          `env:"STRICT_ORDER_TRANSITIONS" envDefault:"false"`

	IdempotencyTTL      time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	OrphanSweepInterval time.Duration `env:"ORPHAN_SWEEP_INTERVAL" envDefault:"1m"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен, уже заданные переменные окружения он не перезаписывает.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envObjectStorage := cfg.ObjectStorageAddress
	envRedisAddress := cfg.RedisAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ObjectStorageAddress, "s", "", "object storage address")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for idempotency keys")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envObjectStorage != "" {
		cfg.ObjectStorageAddress = envObjectStorage
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.EarningPerOrder.IsNegative() {
		return errors.New("EARNING_PER_ORDER must not be negative")
	}
	if c.PenaltyPerUnaccepted.IsNegative() {
		return errors.New("PENALTY_PER_UNACCEPTED must not be negative")
	}
	if c.AuthSecret == "" {
		return errors.New("AUTH_SECRET must not be empty")
	}
	if c.OrphanSweepInterval <= 0 {
		return errors.New("ORPHAN_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// Rates возвращает тарифы начислений.
func (c *Config) Rates() ledger.Rates {
	return ledger.Rates{
		EarningPerOrder:      c.EarningPerOrder,
		PenaltyPerUnaccepted: c.PenaltyPerUnaccepted,
	}
}

// Allocation возвращает политику повторов аллокатора.
func (c *Config) Allocation() allocator.Config {
	return allocator.Config{
		MaxRetries: c.AllocationMaxRetries,
		Backoff:    c.AllocationBackoff,
	}
}
