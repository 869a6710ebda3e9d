package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/pkg/logger"
)

// Response is a decoded answer from the flight endpoint, whatever its status
type Response struct {
	StatusCode int
	Body       flight.LookupResponse
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher issues the single lookup request of a search. A returned error is
// always a transport failure; any decoded body comes back as a Response.
type Fetcher interface {
	FetchFlight(ctx context.Context, q flight.Query, filter flight.Filter) (*Response, error)
}

// HTTPFetcher calls GET {base}/api/flight/{flightNumber}[?dep=&arr=&date=]
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPFetcher creates a fetcher against the given backend. A zero timeout
// leaves the transport default in place.
func NewHTTPFetcher(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("lookup-fetcher"),
	}
}

// FetchFlight performs the lookup request
func (f *HTTPFetcher) FetchFlight(ctx context.Context, q flight.Query, filter flight.Filter) (*Response, error) {
	endpoint := f.baseURL + "/api/flight/" + url.PathEscape(q.String())
	if !filter.Empty() {
		endpoint += "?" + filter.Values().Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &flight.TransportFailure{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	f.logger.Debug("Fetching flight", logger.String("url", endpoint))
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &flight.TransportFailure{Err: err}
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&out.Body); err != nil {
		return nil, &flight.TransportFailure{Err: fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)}
	}
	return out, nil
}
