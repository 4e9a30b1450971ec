// Package config loads service configuration from the environment.
// A .env file is honored when present; every key has a default so the
// service starts with no configuration at all.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	HTTPAddr string

	// Database
	DatabaseDriver string // "sqlite" or "memory"
	DatabasePath   string

	// Cache
	CacheMaxEntries      int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// Resilience
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Events (empty URL disables publishing)
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel  string
	LogFormat string // "console" or "json"
}

// Load reads the environment, after loading a .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabasePath:   getEnv("DATABASE_PATH", "./data/nvlp.db"),

		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 2048),
		CacheTTL:             getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 100*time.Millisecond),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "nvlp"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}
}

// Validate checks the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabasePath == "" {
			problems = append(problems, "DATABASE_PATH cannot be empty with the sqlite driver")
		} else if dir := filepath.Dir(c.DatabasePath); dir != "." && dir != "" && c.DatabasePath != ":memory:" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create database directory %q: %v", dir, err))
				}
			}
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("invalid DATABASE_DRIVER %q: must be sqlite or memory", c.DatabaseDriver))
	}

	if c.CacheMaxEntries < 1 {
		problems = append(problems, fmt.Sprintf("invalid CACHE_MAX_ENTRIES %d: must be at least 1", c.CacheMaxEntries))
	}
	if c.CacheTTL < time.Second {
		problems = append(problems, fmt.Sprintf("invalid CACHE_TTL %v: must be at least 1s", c.CacheTTL))
	}
	if c.CacheCleanupInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid CACHE_CLEANUP_INTERVAL %v: must be at least 1s", c.CacheCleanupInterval))
	}

	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > 10 {
		problems = append(problems, fmt.Sprintf("invalid RETRY_MAX_ATTEMPTS %d: must be between 1 and 10", c.RetryMaxAttempts))
	}
	if c.RetryBaseDelay <= 0 {
		problems = append(problems, fmt.Sprintf("invalid RETRY_BASE_DELAY %v: must be positive", c.RetryBaseDelay))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL %q: %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL scheme %q: must be amqp or amqps", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid LOG_FORMAT %q: must be console or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
