package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/pkg/logger"
)

// Config for the OpenSky REST client. Without client credentials requests are anonymous.
type Config struct {
	APIBaseURL            string
	TokenURL              string
	ClientID              string
	ClientSecret          string
	RequestTimeoutSeconds int
}

// Client fetches live state vectors from OpenSky
type Client struct {
	config     Config
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *metrics.Registry
	logger     *logger.Logger

	// Cached OAuth2 token (to reduce repeated token requests)
	token       string
	tokenExpiry time.Time
	tokenMu     sync.Mutex
}

// NewClient creates a new OpenSky client. clock and reg may be nil.
func NewClient(config Config, clock clockwork.Clock, reg *metrics.Registry, log *logger.Logger) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		clock:   clock,
		metrics: reg,
		logger:  log.Named("opensky"),
	}
}

type statesResponse struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

// LiveByICAO24 returns the current position of an airframe by its ICAO 24-bit
// address. flight.ErrNotFound is returned when OpenSky has no state for it.
func (c *Client) LiveByICAO24(ctx context.Context, icao24 string) (*flight.Live, error) {
	icao24 = strings.ToLower(strings.TrimSpace(icao24))
	if icao24 == "" {
		return nil, flight.ErrNotFound
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome := "error"
	defer func() {
		c.metrics.Upstream("opensky", outcome, time.Since(start).Seconds())
	}()

	urlStr := fmt.Sprintf("%s/states/all?icao24=%s", strings.TrimRight(c.config.APIBaseURL, "/"), url.QueryEscape(icao24))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSky request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Fetching OpenSky state", logger.String("icao24", icao24))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.dropToken()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected opensky status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var osResp statesResponse
	if err := json.NewDecoder(resp.Body).Decode(&osResp); err != nil {
		return nil, fmt.Errorf("failed to parse opensky JSON: %w", err)
	}

	for _, s := range osResp.States {
		if hex, _ := field[string](s, 0); strings.EqualFold(hex, icao24) {
			live := stateToLive(s)
			if live.HasPosition() {
				outcome = "ok"
			} else {
				outcome = "no_position"
			}
			return live, nil
		}
	}
	outcome = "not_found"
	return nil, flight.ErrNotFound
}

// field extracts index i of a state vector when present and of type T
func field[T any](s []any, i int) (T, bool) {
	var zero T
	if len(s) <= i || s[i] == nil {
		return zero, false
	}
	v, ok := s[i].(T)
	return v, ok
}

func ptr(v float64) *float64 { return &v }

// stateToLive maps an OpenSky state vector onto the live block.
// Indices: 3 time_position, 4 last_contact, 5 lon, 6 lat, 7 baro_altitude (m),
// 8 on_ground, 9 velocity (m/s), 10 true_track, 11 vertical_rate (m/s).
func stateToLive(s []any) *flight.Live {
	live := &flight.Live{Source: "opensky"}

	if v, ok := field[float64](s, 6); ok {
		live.Latitude = ptr(v)
	}
	if v, ok := field[float64](s, 5); ok {
		live.Longitude = ptr(v)
	}
	if v, ok := field[float64](s, 7); ok {
		live.Altitude = ptr(v)
	}
	if v, ok := field[bool](s, 8); ok {
		live.IsGround = v
	}
	if v, ok := field[float64](s, 9); ok {
		live.SpeedHorizontal = ptr(v * 3.6) // km/h, as AviationStack reports it
	}
	if v, ok := field[float64](s, 10); ok {
		live.Direction = ptr(v)
	}
	if v, ok := field[float64](s, 11); ok {
		live.SpeedVertical = ptr(v)
	}

	ts, ok := field[float64](s, 3)
	if !ok {
		ts, ok = field[float64](s, 4)
	}
	if ok {
		live.Updated = time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	}
	return live
}

// accessToken returns a cached or freshly requested OAuth2 token. An empty
// token means anonymous access.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return "", nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.clock.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create opensky token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug("Requesting OpenSky OAuth2 token", logger.String("token_url", c.config.TokenURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request opensky token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("OpenSky token endpoint returned non-200",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(body)))
		return "", fmt.Errorf("opensky token endpoint error: %d", resp.StatusCode)
	}

	var tokResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokResp); err != nil {
		return "", fmt.Errorf("failed to decode opensky token response: %w", err)
	}
	if tokResp.AccessToken == "" {
		return "", fmt.Errorf("opensky token response did not contain access_token")
	}

	var expiry time.Time
	if tokResp.ExpiresIn > 60 {
		// Subtract a small safety margin
		expiry = c.clock.Now().Add(time.Duration(tokResp.ExpiresIn-30) * time.Second)
	} else {
		expiry = c.clock.Now().Add(29 * time.Minute)
	}
	c.token = tokResp.AccessToken
	c.tokenExpiry = expiry

	return c.token, nil
}

func (c *Client) dropToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}
