package aviationstack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/pkg/logger"
)

// ErrNotConfigured is returned when no access key is set
var ErrNotConfigured = errors.New("AviationStack API key not configured")

// Config for the AviationStack client
type Config struct {
	APIBaseURL            string
	APIKey                string
	RequestTimeoutSeconds int
	MaxRetries            int
}

// Query selects flights. At least one field must be set.
type Query struct {
	FlightIATA string
	DepIATA    string
	ArrIATA    string
	FlightDate string // YYYY-MM-DD
}

func (q Query) empty() bool {
	return q.FlightIATA == "" && q.DepIATA == "" && q.ArrIATA == "" && q.FlightDate == ""
}

// APIError is the error object AviationStack returns in place of data
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aviationstack error %s: %s", e.Code, e.Message)
}

type flightsResponse struct {
	Data  []flight.Record `json:"data"`
	Error *APIError       `json:"error,omitempty"`
}

// Client is responsible for fetching flights from AviationStack
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *metrics.Registry
	logger     *logger.Logger
}

// NewClient creates a new AviationStack client. reg may be nil.
func NewClient(config Config, reg *metrics.Registry, log *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		metrics: reg,
		logger:  log.Named("aviationstack"),
	}
}

// Configured reports whether an access key is set
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// FindFlight returns the first flight matching q. flight.ErrNotFound is
// returned when the provider has no data.
func (c *Client) FindFlight(ctx context.Context, q Query) (*flight.Record, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if q.empty() {
		return nil, errors.New("at least one search parameter is required")
	}

	params := url.Values{}
	params.Set("access_key", c.config.APIKey)
	params.Set("limit", "1")
	if q.FlightIATA != "" {
		params.Set("flight_iata", q.FlightIATA)
	}
	if q.DepIATA != "" {
		params.Set("dep_iata", q.DepIATA)
	}
	if q.ArrIATA != "" {
		params.Set("arr_iata", q.ArrIATA)
	}
	if q.FlightDate != "" {
		params.Set("flight_date", q.FlightDate)
	}
	u := strings.TrimRight(c.config.APIBaseURL, "/") + "/flights?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying AviationStack request",
				logger.String("flight", q.FlightIATA),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		rec, retry, err := c.fetch(ctx, u)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		c.logger.Warn("AviationStack request failed, may retry",
			logger.String("flight", q.FlightIATA),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}
	return nil, lastErr
}

func (c *Client) fetch(ctx context.Context, u string) (rec *flight.Record, retry bool, err error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		c.metrics.Upstream("aviationstack", outcome, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create AviationStack request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL carries the access key; keep it out of the error text
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, true, fmt.Errorf("error connecting to AviationStack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("unexpected AviationStack status code: %d", resp.StatusCode)
	}

	var body flightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("failed to decode AviationStack response: %w", err)
	}
	if body.Error != nil {
		return nil, false, body.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected AviationStack status code: %d", resp.StatusCode)
	}
	if len(body.Data) == 0 {
		outcome = "not_found"
		return nil, false, flight.ErrNotFound
	}

	outcome = "ok"
	return &body.Data[0], false, nil
}
