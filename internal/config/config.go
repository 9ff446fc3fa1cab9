// Package config reads runtime settings from the environment. A .env file is
// honored in development; a missing one is fine in production.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the listen address for the real-time channel and the admin
	// API, independent of any main application endpoint.
	Addr string
	// DatabaseURL selects the Postgres store; when empty the server runs on
	// the in-memory store (dev mode).
	DatabaseURL string
	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string
	// SelectionTimeout bounds the live selection phase server-side. Zero
	// disables the timeout.
	SelectionTimeout time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:             getenv("ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		SelectionTimeout: 60 * time.Second,
	}
	if v := os.Getenv("SELECTION_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec >= 0 {
			cfg.SelectionTimeout = time.Duration(sec) * time.Second
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
