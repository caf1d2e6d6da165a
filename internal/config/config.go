// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/guest-stay-portal/backend/internal/clock"
)

// Config is the full application configuration.
type Config struct {
	Server ServerConfig
	Portal PortalConfig
	Clock  clock.Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PortalConfig holds guest portal behavior settings.
type PortalConfig struct {
	// Timezone is the property's IANA time zone; calendar-day arithmetic
	// runs in it. Empty means the host's local zone.
	Timezone string

	// SessionIdleTimeout is how long an untouched guest session survives.
	SessionIdleTimeout time.Duration
}

// Load reads configuration from the environment. A .env file at envFile, when
// present, is loaded first; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("ADDR", ":8099"),
			ReadTimeout:  getEnvDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		Portal: PortalConfig{
			Timezone:           getEnv("PROPERTY_TIMEZONE", ""),
			SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		},
		Clock: clock.DefaultConfig(),
	}, nil
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
