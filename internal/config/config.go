package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string

	// Queue backend selection: QStash when QSTASH_URL is set, otherwise the
	// self-hosted Redis queue.
	RedisURL    string
	QStashURL   string
	QStashToken string
	NumWorkers  int

	// CallbackBaseURL is this service's public base URL, used to build the
	// queue callback URLs.
	CallbackBaseURL string

	// ViewBaseURL is the base for link URLs that have no custom domain.
	ViewBaseURL string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		QStashURL:       getEnv("QSTASH_URL", ""),
		QStashToken:     getEnv("QSTASH_TOKEN", ""),
		NumWorkers:      getEnvInt("NUM_WORKERS", 10),
		CallbackBaseURL: getEnv("CALLBACK_BASE_URL", ""),
		ViewBaseURL:     getEnv("VIEW_BASE_URL", "https://www.papermark.com"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CallbackBaseURL == "" {
		return nil, fmt.Errorf("CALLBACK_BASE_URL is required")
	}
	if cfg.QStashURL == "" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("either QSTASH_URL or REDIS_URL is required")
	}
	if cfg.QStashURL != "" && cfg.QStashToken == "" {
		return nil, fmt.Errorf("QSTASH_TOKEN is required when QSTASH_URL is set")
	}

	return cfg, nil
}

// UseQStash reports whether the hosted queue backend is configured.
func (c *Config) UseQStash() bool {
	return c.QStashURL != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
