package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/pkg/logger"
)

func TestHTTPFetcher_DecodesSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"flight":{"flight_status":"scheduled","flight":{"iata":"IB1234"}}}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", time.Second, logger.NewNop())
	resp, err := f.FetchFlight(context.Background(), "IB1234", flight.Filter{})
	require.NoError(t, err)

	assert.Equal(t, "/api/flight/IB1234", gotPath)
	assert.True(t, resp.OK())
	assert.Equal(t, "scheduled", resp.Body.Flight.FlightStatus)
}

func TestHTTPFetcher_NonOKIsStillAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"flight":{"error":"No data found for flight XX1"}}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPFetcher(srv.URL, time.Second, logger.NewNop()).FetchFlight(context.Background(), "XX1", flight.Filter{})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "No data found for flight XX1", resp.Body.Flight.Error)
}

func TestHTTPFetcher_EscapesPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, time.Second, logger.NewNop()).FetchFlight(context.Background(), "A/B 1", flight.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "/api/flight/A%2FB%201", gotPath)
}

func TestHTTPFetcher_SendsFilter(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	filter := flight.Filter{Departure: "MAD", Date: "2025-07-11"}
	_, err := NewHTTPFetcher(srv.URL, time.Second, logger.NewNop()).FetchFlight(context.Background(), "IB1", filter)
	require.NoError(t, err)
	assert.Equal(t, "date=2025-07-11&dep=MAD", gotQuery)
}

func TestHTTPFetcher_TransportFailures(t *testing.T) {
	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer malformed.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	for name, base := range map[string]string{"malformed body": malformed.URL, "connection refused": closedURL} {
		t.Run(name, func(t *testing.T) {
			_, err := NewHTTPFetcher(base, time.Second, logger.NewNop()).FetchFlight(context.Background(), "IB1", flight.Filter{})
			var tf *flight.TransportFailure
			assert.True(t, errors.As(err, &tf), "got %v", err)
		})
	}
}
