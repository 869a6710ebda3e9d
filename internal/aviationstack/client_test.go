package aviationstack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/pkg/logger"
)

const ib3166 = `{"pagination":{"limit":1,"count":1},"data":[{
	"flight_date":"2025-03-01","flight_status":"active",
	"departure":{"airport":"Adolfo Suarez Madrid-Barajas","iata":"MAD","icao":"LEMD","terminal":"4S","gate":"S12","scheduled":"2025-03-01T10:00:00+00:00"},
	"arrival":{"airport":"El Prat","iata":"BCN","icao":"LEBL","baggage":"07","scheduled":"2025-03-01T11:15:00+00:00"},
	"airline":{"name":"Iberia","iata":"IB","icao":"IBE"},
	"flight":{"number":"3166","iata":"IB3166","icao":"IBE3166"},
	"aircraft":{"registration":"EC-MXV","iata":"A20N","icao24":"3443c5"},
	"live":{"latitude":40.9,"longitude":-1.2,"altitude":10363,"direction":62,"speed_horizontal":820,"is_ground":false}
}]}`

func newTestClient(url, key string) *Client {
	return NewClient(Config{APIBaseURL: url, APIKey: key, RequestTimeoutSeconds: 2}, nil, logger.NewNop())
}

func TestFindFlight(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/flights", r.URL.Path)
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(ib3166))
	}))
	defer srv.Close()

	rec, err := newTestClient(srv.URL+"/v1", "key123").FindFlight(context.Background(), Query{FlightIATA: "IB3166"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"access_key": "key123", "flight_iata": "IB3166", "limit": "1"}, got)
	assert.Equal(t, "active", rec.FlightStatus)
	assert.Equal(t, "LEMD", rec.Departure.ICAO)
	assert.Equal(t, "07", rec.Arrival.Baggage)
	assert.Equal(t, "3443c5", rec.Aircraft.ICAO24)
	require.True(t, rec.Live.HasPosition())
	assert.Equal(t, 40.9, *rec.Live.Latitude)
}

func TestFindFlight_RouteAndDate(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		_, _ = w.Write([]byte(ib3166))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").FindFlight(context.Background(),
		Query{DepIATA: "MAD", ArrIATA: "BCN", FlightDate: "2025-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "access_key=k&arr_iata=BCN&dep_iata=MAD&flight_date=2025-03-01&limit=1", got)
}

func TestFindFlight_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pagination":{"count":0},"data":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k").FindFlight(context.Background(), Query{FlightIATA: "XX1"})
	assert.ErrorIs(t, err, flight.ErrNotFound)
}

func TestFindFlight_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_access_key","message":"You have not supplied a valid API Access Key."}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "bad").FindFlight(context.Background(), Query{FlightIATA: "IB1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_access_key", apiErr.Code)
}

func TestFindFlight_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(ib3166))
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL, APIKey: "k", RequestTimeoutSeconds: 2, MaxRetries: 1}, nil, logger.NewNop())
	rec, err := c.FindFlight(context.Background(), Query{FlightIATA: "IB3166"})
	require.NoError(t, err)
	assert.Equal(t, "IB3166", rec.Flight.IATA)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFindFlight_ConnectionErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := newTestClient(base, "supersecret").FindFlight(context.Background(), Query{FlightIATA: "IB1"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "supersecret")
}

func TestFindFlight_Preconditions(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", "").FindFlight(context.Background(), Query{FlightIATA: "IB1"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = newTestClient("http://127.0.0.1:1", "k").FindFlight(context.Background(), Query{})
	assert.Error(t, err)
}
