package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/aeris/internal/aviationstack"
	"github.com/yegors/aeris/internal/cache"
	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/internal/storage/sqlite"
	"github.com/yegors/aeris/pkg/logger"
)

// FlightSource finds flight records; *aviationstack.Client implements it
type FlightSource interface {
	Configured() bool
	FindFlight(ctx context.Context, q aviationstack.Query) (*flight.Record, error)
}

// LiveSource resolves live positions by airframe; *opensky.Client implements it
type LiveSource interface {
	LiveByICAO24(ctx context.Context, icao24 string) (*flight.Live, error)
}

// MetarSource resolves METAR sides; *weather.Service implements it
type MetarSource interface {
	Side(ctx context.Context, icao string) *flight.MetarSide
}

// LookupLog records backend lookups; *sqlite.Storage implements it
type LookupLog interface {
	StoreLookup(ctx context.Context, record *sqlite.LookupRecord) (int64, error)
	RecentLookups(ctx context.Context, limit int) ([]*sqlite.LookupRecord, error)
	PruneLookups(ctx context.Context, maxAge time.Duration) (int64, error)
}

// LookupError is a lookup that produced no flight. StatusCode is the HTTP
// status the API answers with; Message goes into flight.error.
type LookupError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *LookupError) Error() string { return e.Message }

func (e *LookupError) Unwrap() error { return e.Err }

// Deps are the providers a Service combines. Live and Log may be nil.
type Deps struct {
	Flights FlightSource
	Live    LiveSource
	Metars  MetarSource
	Cache   cache.Cache
	Log     LookupLog
	Clock   clockwork.Clock
	Metrics *metrics.Registry
}

// Service answers /api/flight/{n}: the flight from AviationStack, a live
// position from OpenSky when the record has none, and METAR for both ends.
type Service struct {
	flights   FlightSource
	live      LiveSource
	metars    MetarSource
	cache     cache.Cache
	log       LookupLog
	clock     clockwork.Clock
	metrics   *metrics.Registry
	flightTTL time.Duration
	logger    *logger.Logger
}

// NewService creates the lookup service
func NewService(deps Deps, flightTTL time.Duration, log *logger.Logger) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		flights:   deps.Flights,
		live:      deps.Live,
		metars:    deps.Metars,
		cache:     deps.Cache,
		log:       deps.Log,
		clock:     clock,
		metrics:   deps.Metrics,
		flightTTL: flightTTL,
		logger:    log.Named("tracker"),
	}
}

func flightKey(q flight.Query, filter flight.Filter) string {
	if filter.Empty() {
		return "flight:" + q.String()
	}
	return "flight:" + q.String() + "?" + filter.Values().Encode()
}

// Lookup resolves a flight, narrowed by filter when it is set. Failures are
// returned as *LookupError.
func (s *Service) Lookup(ctx context.Context, q flight.Query, filter flight.Filter) (*flight.LookupResponse, error) {
	start := s.clock.Now()
	key := flightKey(q, filter)

	if resp, ok := cache.GetJSON[flight.LookupResponse](ctx, s.cache, key); ok {
		s.metrics.CacheResult("flight", true)
		s.metrics.Lookup("ok")
		s.logger.Debug("Serving cached lookup", logger.String("flight", q.String()))
		s.record(ctx, q, &resp, nil, true, s.clock.Since(start))
		return &resp, nil
	}
	s.metrics.CacheResult("flight", false)

	resp, err := s.resolve(ctx, q, filter)
	s.record(ctx, q, resp, err, false, s.clock.Since(start))
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, resp, s.flightTTL); err != nil {
		s.logger.Warn("Failed to cache lookup", logger.String("flight", q.String()), logger.Error(err))
	}
	return resp, nil
}

func (s *Service) resolve(ctx context.Context, q flight.Query, filter flight.Filter) (*flight.LookupResponse, error) {
	if !s.flights.Configured() {
		s.metrics.Lookup("unconfigured")
		return nil, &LookupError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    aviationstack.ErrNotConfigured.Error(),
			Err:        aviationstack.ErrNotConfigured,
		}
	}

	rec, err := s.flights.FindFlight(ctx, aviationstack.Query{
		FlightIATA: q.String(),
		DepIATA:    filter.Departure,
		ArrIATA:    filter.Arrival,
		FlightDate: filter.Date,
	})
	if errors.Is(err, flight.ErrNotFound) {
		s.metrics.Lookup("not_found")
		msg := fmt.Sprintf("No data found for flight %s", q)
		if !filter.Empty() {
			msg += fmt.Sprintf(" (%s)", filter)
		}
		return nil, &LookupError{
			StatusCode: http.StatusNotFound,
			Message:    msg,
			Err:        err,
		}
	}
	if err != nil {
		s.metrics.Lookup("upstream_error")
		s.logger.Error("Flight provider request failed", logger.String("flight", q.String()), logger.Error(err))
		return nil, &LookupError{
			StatusCode: http.StatusBadGateway,
			Message:    fmt.Sprintf("Error connecting to the flight data provider: %v", err),
			Err:        err,
		}
	}

	s.fillLive(ctx, rec)
	metar := s.fetchMetar(ctx, rec)

	now := s.clock.Now().UTC()
	resp := &flight.LookupResponse{Flight: rec, FetchedAt: &now}
	if !metar.Empty() {
		resp.Metar = metar
	}
	s.metrics.Lookup("ok")
	return resp, nil
}

// fillLive queries OpenSky when the provider gave no position but named the airframe
func (s *Service) fillLive(ctx context.Context, rec *flight.Record) {
	if s.live == nil || rec.Live.HasPosition() || rec.Aircraft == nil || rec.Aircraft.ICAO24 == "" {
		return
	}

	live, err := s.live.LiveByICAO24(ctx, rec.Aircraft.ICAO24)
	switch {
	case errors.Is(err, flight.ErrNotFound):
		s.logger.Debug("No live state for airframe", logger.String("icao24", rec.Aircraft.ICAO24))
	case err != nil:
		s.logger.Warn("Live position lookup failed", logger.String("icao24", rec.Aircraft.ICAO24), logger.Error(err))
	case live.HasPosition():
		rec.Live = live
	}
}

// fetchMetar gets both ends concurrently. Each side is independent; a
// failure on one end never affects the other.
func (s *Service) fetchMetar(ctx context.Context, rec *flight.Record) *flight.Metar {
	metar := &flight.Metar{}
	g, gctx := errgroup.WithContext(ctx)

	if icao := rec.Departure.ICAO; icao != "" {
		g.Go(func() error {
			metar.Departure = s.metars.Side(gctx, icao)
			return nil
		})
	}
	if icao := rec.Arrival.ICAO; icao != "" {
		g.Go(func() error {
			metar.Arrival = s.metars.Side(gctx, icao)
			return nil
		})
	}

	_ = g.Wait()
	return metar
}

func (s *Service) record(ctx context.Context, q flight.Query, resp *flight.LookupResponse, err error, cached bool, took time.Duration) {
	if s.log == nil {
		return
	}
	entry := &sqlite.LookupRecord{
		Flight:     q.String(),
		StatusCode: http.StatusOK,
		Cached:     cached,
		DurationMs: took.Milliseconds(),
		CreatedAt:  s.clock.Now(),
	}
	var lerr *LookupError
	if errors.As(err, &lerr) {
		entry.StatusCode = lerr.StatusCode
		entry.Error = lerr.Message
	}
	if resp != nil && resp.Flight != nil {
		entry.FlightStatus = resp.Flight.FlightStatus
		entry.HasPosition = resp.Flight.Live.HasPosition()
	}
	if _, err := s.log.StoreLookup(ctx, entry); err != nil {
		s.logger.Warn("Failed to record lookup", logger.String("flight", q.String()), logger.Error(err))
	}
}

// RecentLookups returns the newest logged lookups
func (s *Service) RecentLookups(ctx context.Context, limit int) ([]*sqlite.LookupRecord, error) {
	if s.log == nil {
		return []*sqlite.LookupRecord{}, nil
	}
	return s.log.RecentLookups(ctx, limit)
}

// RunPruner deletes logged lookups older than retention every interval until
// ctx is done. A zero retention keeps everything.
func (s *Service) RunPruner(ctx context.Context, interval, retention time.Duration) {
	if s.log == nil || retention <= 0 {
		return
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := s.log.PruneLookups(ctx, retention)
			if err != nil {
				s.logger.Warn("Failed to prune lookup log", logger.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Pruned lookup log", logger.Int64("deleted", n))
			}
		}
	}
}

// CacheBackend names the response cache in use
func (s *Service) CacheBackend() string {
	return s.cache.Backend()
}
