package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Trusted fetches the current instant from an HTTP time authority.
//
// Every failure path — timeout, transport error, non-2xx status, unparsable
// body — degrades silently to the local clock with a logged warning. Stage
// resolution must never block or surface a time failure to the guest.
type Trusted struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Logger
}

// NewTrusted creates a trusted time source.
func NewTrusted(cfg Config, log *logrus.Logger) *Trusted {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Trusted{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// authorityResponse is the worldtimeapi-compatible payload.
type authorityResponse struct {
	UTCDatetime string `json:"utc_datetime"`
	Unixtime    int64  `json:"unixtime"`
}

// Now returns the authoritative instant, or the local clock on any failure.
func (t *Trusted) Now(ctx context.Context) time.Time {
	at, err := t.fetch(ctx)
	if err != nil {
		t.log.WithError(err).Warn("Trusted time unavailable, using local clock")
		return time.Now()
	}
	return at
}

func (t *Trusted) fetch(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.AuthorityURL, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("building time request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("time request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("time authority status %d", resp.StatusCode)
	}

	var body authorityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return time.Time{}, fmt.Errorf("decoding time response: %w", err)
	}

	if body.Unixtime > 0 {
		return time.Unix(body.Unixtime, 0), nil
	}

	at, err := time.Parse(time.RFC3339, body.UTCDatetime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing authority datetime: %w", err)
	}
	return at, nil
}
