package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port         string        `env:"PORT,           default=8080"`
	Env          string        `env:"ENV,            default=development"`
	LogLevel     string        `env:"LOG_LEVEL,      default=info"`
	JWTSecret    string        `env:"JWT_SECRET,     required"`
	TokenTTL     time.Duration `env:"TOKEN_TTL,      default=1h"`
	CORSOrigin   string        `env:"CORS_ORIGIN,    default=http://localhost:5173"`
	RateLimitRPS float64       `env:"RATE_LIMIT_RPS, default=20"`
	AuditWorkers int           `env:"AUDIT_WORKERS,  default=4"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=clinic"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED,  default=true"`
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads an optional .env file, then the environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.TokenTTL <= 0:
		return errors.New("TOKEN_TTL must be positive")
	case c.RateLimitRPS <= 0:
		return errors.New("RATE_LIMIT_RPS must be positive")
	case c.AuditWorkers <= 0:
		return errors.New("AUDIT_WORKERS must be positive")
	}
	return nil
}
