// Package clock supplies the current instant, either from the local device
// clock or from a trusted network authority. Guests can and do change device
// clocks to pre-release door codes or dodge expiry; the trusted source is the
// anti-tamper control, and its failure mode is "fall back to local", never
// "deny service".
package clock

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Source supplies the current instant.
type Source interface {
	Now(ctx context.Context) time.Time
}

// Local reads the machine clock synchronously.
type Local struct{}

// Now returns the local time.
func (Local) Now(ctx context.Context) time.Time {
	return time.Now()
}

// Config holds time source configuration.
type Config struct {
	// UseTrustedTime selects the network authority; when false the local
	// clock is always used.
	UseTrustedTime bool

	// AuthorityURL is the HTTP time authority endpoint.
	AuthorityURL string

	// Timeout bounds the authority request.
	Timeout time.Duration
}

// DefaultConfig returns clock configuration from environment variables.
func DefaultConfig() Config {
	return Config{
		UseTrustedTime: getEnv("TRUSTED_TIME", "true") == "true",
		AuthorityURL:   getEnv("TIME_AUTHORITY_URL", "https://worldtimeapi.org/api/ip"),
		Timeout:        3 * time.Second,
	}
}

// New returns a source for the configuration: the trusted authority when
// enabled, the local clock otherwise.
func New(cfg Config, log *logrus.Logger) Source {
	if !cfg.UseTrustedTime {
		return Local{}
	}
	return NewTrusted(cfg, log)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
