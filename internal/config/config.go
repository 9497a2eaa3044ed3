package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServerPort    string `env:"SERVER_PORT" envDefault:"8080"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"mentormatch"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"mentormatch_dev_password"`
	DBName     string `env:"DB_NAME" envDefault:"mentormatch"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"mentormatch.db"`
	TxRetries  int    `env:"TX_MAX_RETRIES" envDefault:"5"`

	RedisURL string `env:"REDIS_URL"`

	JWTSecret   string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"mentor-mentee-app"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"mentor-mentee-users"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"60m"`

	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.TxRetries < 0 {
		return fmt.Errorf("TX_MAX_RETRIES must not be negative")
	}
	return nil
}

// PostgresDSN builds the pgx connection string from the DB_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
