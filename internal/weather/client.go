package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/pkg/logger"
)

// ErrNotConfigured is returned when no CheckWX API key is set
var ErrNotConfigured = errors.New("CheckWX API key not configured")

// Client handles HTTP requests to the CheckWX METAR API
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	metrics    *metrics.Registry
	logger     *logger.Logger
}

// NewClient creates a new CheckWX client. reg may be nil.
func NewClient(config ClientConfig, reg *metrics.Registry, logger *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		metrics: reg,
		logger:  logger.Named("weather-client"),
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// FetchDecoded fetches the latest decoded METAR for an ICAO station
func (c *Client) FetchDecoded(ctx context.Context, icao string) (*DecodedMETAR, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	u := fmt.Sprintf("%s/metar/%s/decoded", strings.TrimRight(c.config.APIBaseURL, "/"), url.PathEscape(icao))

	var result DecodedResponse
	if err := c.fetchWithRetry(ctx, u, icao, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no METAR data found for %s: %w", icao, flight.ErrNotFound)
	}

	// Return the first (latest) observation
	return &result.Data[0], nil
}

// fetchWithRetry performs HTTP request with retry logic and exponential backoff.
// Client errors other than 429 are not retried.
func (c *Client) fetchWithRetry(ctx context.Context, u, icao string, target any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying METAR fetch",
				logger.String("airport", icao),
				logger.Int("attempt", attempt),
				logger.String("backoff", backoffDuration.String()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		retry, err := c.fetchOnce(ctx, u, target)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched METAR after retries",
					logger.String("airport", icao),
					logger.Int("attempts_needed", attempt+1))
			}
			return nil
		}

		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		c.logger.Warn("METAR request failed, may retry",
			logger.String("airport", icao),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	if errors.Is(lastErr, flight.ErrNotFound) {
		return lastErr
	}
	c.logger.Error("All attempts to fetch METAR failed",
		logger.String("airport", icao),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return lastErr
}

// fetchOnce makes one request; retry reports whether a failure is transient
func (c *Client) fetchOnce(ctx context.Context, u string, target any) (retry bool, err error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		c.metrics.Upstream("checkwx", outcome, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build METAR request: %w", err)
	}
	req.Header.Set("X-API-Key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("error making request to CheckWX: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		outcome = "not_found"
		return false, fmt.Errorf("CheckWX returned 404: %w", flight.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return true, fmt.Errorf("error decoding METAR data: %w", err)
	}
	outcome = "ok"
	return false, nil
}
