package tracker

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/aeris/internal/aviationstack"
	"github.com/yegors/aeris/internal/cache"
	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/storage/sqlite"
	"github.com/yegors/aeris/pkg/logger"
)

type stubFlights struct {
	mu         sync.Mutex
	calls      int
	last       aviationstack.Query
	configured bool
	rec        *flight.Record
	err        error
}

func (s *stubFlights) Configured() bool { return s.configured }

func (s *stubFlights) FindFlight(_ context.Context, q aviationstack.Query) (*flight.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = q
	if s.err != nil {
		return nil, s.err
	}
	rec := *s.rec
	rec.Flight.IATA = q.FlightIATA
	return &rec, nil
}

type stubLive struct {
	calls int
	live  *flight.Live
	err   error
}

func (s *stubLive) LiveByICAO24(context.Context, string) (*flight.Live, error) {
	s.calls++
	return s.live, s.err
}

type stubMetars struct {
	mu    sync.Mutex
	asked []string
}

func (s *stubMetars) Side(_ context.Context, icao string) *flight.MetarSide {
	s.mu.Lock()
	s.asked = append(s.asked, icao)
	s.mu.Unlock()
	if icao == "LEBL" {
		return &flight.MetarSide{ICAO: icao, Error: "No METAR data found for LEBL"}
	}
	return &flight.MetarSide{ICAO: icao}
}

func f64(v float64) *float64 { return &v }

func baseRecord() *flight.Record {
	return &flight.Record{
		FlightStatus: "active",
		Departure:    flight.Airport{IATA: "MAD", ICAO: "LEMD"},
		Arrival:      flight.Airport{IATA: "BCN", ICAO: "LEBL"},
		Aircraft:     &flight.Aircraft{ICAO24: "3443c5"},
	}
}

type fixture struct {
	svc     *Service
	flights *stubFlights
	live    *stubLive
	metars  *stubMetars
	store   *sqlite.Storage
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "aeris.db"), clock, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		flights: &stubFlights{configured: true, rec: baseRecord()},
		live:    &stubLive{err: flight.ErrNotFound},
		metars:  &stubMetars{},
		store:   store,
		clock:   clock,
	}
	f.svc = NewService(Deps{
		Flights: f.flights,
		Live:    f.live,
		Metars:  f.metars,
		Cache:   cache.NewMemoryCache(time.Minute, time.Minute),
		Log:     store,
		Clock:   clock,
	}, time.Minute, logger.NewNop())
	return f
}

func TestLookup_Success(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Lookup(context.Background(), "IB3166", flight.Filter{})
	require.NoError(t, err)

	assert.Equal(t, "IB3166", resp.Flight.Flight.IATA)
	require.NotNil(t, resp.Metar)
	assert.True(t, resp.Metar.Departure.Usable())
	assert.False(t, resp.Metar.Arrival.Usable(), "each side is independent")
	assert.ElementsMatch(t, []string{"LEMD", "LEBL"}, f.metars.asked)
	require.NotNil(t, resp.FetchedAt)
	assert.Equal(t, f.clock.Now().UTC(), *resp.FetchedAt)

	logged, err := f.svc.RecentLookups(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, http.StatusOK, logged[0].StatusCode)
	assert.Equal(t, "active", logged[0].FlightStatus)
}

func TestLookup_Cached(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		resp, err := f.svc.Lookup(context.Background(), "IB3166", flight.Filter{})
		require.NoError(t, err)
		assert.Equal(t, "IB3166", resp.Flight.Flight.IATA)
	}

	assert.Equal(t, 1, f.flights.calls)
	assert.Equal(t, "memory", f.svc.CacheBackend())

	logged, err := f.svc.RecentLookups(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logged, 3, "cache hits are logged too")
	assert.True(t, logged[0].Cached)
	assert.True(t, logged[1].Cached)
	assert.False(t, logged[2].Cached)
	for _, l := range logged {
		assert.Equal(t, http.StatusOK, l.StatusCode)
		assert.Equal(t, "active", l.FlightStatus)
	}
}

func TestLookup_Filter(t *testing.T) {
	f := newFixture(t)
	filter := flight.Filter{Departure: "MAD", Arrival: "BCN", Date: "2025-03-01"}

	_, err := f.svc.Lookup(context.Background(), "IB3166", filter)
	require.NoError(t, err)
	assert.Equal(t, aviationstack.Query{FlightIATA: "IB3166", DepIATA: "MAD", ArrIATA: "BCN", FlightDate: "2025-03-01"}, f.flights.last)

	// a filtered answer is cached apart from the unfiltered one
	_, err = f.svc.Lookup(context.Background(), "IB3166", flight.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.flights.calls)
	assert.Equal(t, aviationstack.Query{FlightIATA: "IB3166"}, f.flights.last)

	f.flights.err = flight.ErrNotFound
	_, err = f.svc.Lookup(context.Background(), "IB9", filter)
	var lerr *LookupError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "No data found for flight IB9 (MAD-BCN 2025-03-01)", lerr.Message)
}

func TestLookup_NoMetarWhenNoICAO(t *testing.T) {
	f := newFixture(t)
	f.flights.rec.Departure.ICAO = ""
	f.flights.rec.Arrival.ICAO = ""

	resp, err := f.svc.Lookup(context.Background(), "IB1", flight.Filter{})
	require.NoError(t, err)
	assert.Nil(t, resp.Metar)
	assert.Empty(t, f.metars.asked)
}

func TestLookup_FillsLiveFromOpenSky(t *testing.T) {
	f := newFixture(t)
	f.live.err = nil
	f.live.live = &flight.Live{Latitude: f64(40.9), Longitude: f64(-1.2), Source: "opensky"}

	resp, err := f.svc.Lookup(context.Background(), "IB3166", flight.Filter{})
	require.NoError(t, err)
	require.True(t, resp.Flight.Live.HasPosition())
	assert.Equal(t, "opensky", resp.Flight.Live.Source)
}

func TestLookup_KeepsProviderLive(t *testing.T) {
	f := newFixture(t)
	f.flights.rec.Live = &flight.Live{Latitude: f64(1), Longitude: f64(2)}

	resp, err := f.svc.Lookup(context.Background(), "IB3166", flight.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.live.calls)
	assert.Equal(t, 1.0, *resp.Flight.Live.Latitude)
}

func TestLookup_LiveFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.live.err = errors.New("opensky down")

	resp, err := f.svc.Lookup(context.Background(), "IB3166", flight.Filter{})
	require.NoError(t, err)
	assert.Nil(t, resp.Flight.Live)
}

func TestLookup_Failures(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		err        error
		status     int
		message    string
	}{
		{"unconfigured", false, nil, http.StatusServiceUnavailable, "AviationStack API key not configured"},
		{"not found", true, flight.ErrNotFound, http.StatusNotFound, "No data found for flight XX9"},
		{"upstream", true, errors.New("connection reset"), http.StatusBadGateway, "Error connecting to the flight data provider: connection reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.flights.configured = tt.configured
			f.flights.err = tt.err

			_, err := f.svc.Lookup(context.Background(), "XX9", flight.Filter{})
			var lerr *LookupError
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.status, lerr.StatusCode)
			assert.Equal(t, tt.message, lerr.Message)

			// failures are not cached
			_, _ = f.svc.Lookup(context.Background(), "XX9", flight.Filter{})
			if tt.configured {
				assert.Equal(t, 2, f.flights.calls)
			}

			logged, err := f.svc.RecentLookups(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, logged, 2)
			assert.Equal(t, tt.status, logged[0].StatusCode)
			assert.Equal(t, tt.message, logged[0].Error)
		})
	}
}

func TestRunPruner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Lookup(context.Background(), "IB1", flight.Filter{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunPruner(ctx, time.Hour, 24*time.Hour)
		close(done)
	}()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(25 * time.Hour)

	assert.Eventually(t, func() bool {
		logged, err := f.svc.RecentLookups(context.Background(), 10)
		return err == nil && len(logged) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunPruner_ZeroRetentionReturns(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})
	go func() {
		f.svc.RunPruner(context.Background(), time.Hour, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner should return immediately without retention")
	}
}
