package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the errsink server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Ingest   IngestConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// IngestToken is the shared token clients present on POST /api/v1/errors.
	IngestToken string
	// AdminTokenHash is the bcrypt hash of the admin bearer token.
	AdminTokenHash string
}

type IngestConfig struct {
	// MaxPayloadBytes caps the raw request body before parsing.
	MaxPayloadBytes int64
	// RateLimitPerMinute is the per-IP accepted-record ceiling for the
	// rolling 60 second window.
	RateLimitPerMinute int
	// AdminRequestsPerMinute limits authenticated admin API requests.
	AdminRequestsPerMinute int
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ERRSINK_PORT", 8080),
			Env:  envString("ERRSINK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			IngestToken:    os.Getenv("ERRSINK_INGEST_TOKEN"),
			AdminTokenHash: os.Getenv("ERRSINK_ADMIN_TOKEN_HASH"),
		},
		Ingest: IngestConfig{
			MaxPayloadBytes:        int64(envInt("ERRSINK_MAX_PAYLOAD_BYTES", 51200)),
			RateLimitPerMinute:     envInt("ERRSINK_RATE_LIMIT_PER_MINUTE", 10),
			AdminRequestsPerMinute: envInt("ERRSINK_ADMIN_REQUESTS_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Auth.IngestToken == "" {
		return fmt.Errorf("ERRSINK_INGEST_TOKEN is required")
	}
	if c.Auth.AdminTokenHash == "" {
		return fmt.Errorf("ERRSINK_ADMIN_TOKEN_HASH is required")
	}
	if c.Ingest.MaxPayloadBytes <= 0 {
		return fmt.Errorf("ERRSINK_MAX_PAYLOAD_BYTES must be positive, got %d", c.Ingest.MaxPayloadBytes)
	}
	if c.Ingest.RateLimitPerMinute <= 0 {
		return fmt.Errorf("ERRSINK_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.Ingest.RateLimitPerMinute)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
