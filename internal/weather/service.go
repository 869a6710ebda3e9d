package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yegors/aeris/internal/cache"
	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/internal/physics"
	"github.com/yegors/aeris/pkg/logger"
)

// Fetcher fetches decoded METARs; *Client implements it
type Fetcher interface {
	FetchDecoded(ctx context.Context, icao string) (*DecodedMETAR, error)
}

// ServiceOptions tune the METAR service
type ServiceOptions struct {
	MetarTTL     time.Duration
	MagneticWind bool
	Clock        clockwork.Clock
}

// Service resolves METAR sides for stations, caching successful observations
// per ICAO code. Failures never propagate: they become a side carrying error.
type Service struct {
	fetcher Fetcher
	cache   cache.Cache
	opts    ServiceOptions
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewService creates a METAR service
func NewService(fetcher Fetcher, c cache.Cache, opts ServiceOptions, reg *metrics.Registry, log *logger.Logger) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		fetcher: fetcher,
		cache:   c,
		opts:    opts,
		metrics: reg,
		logger:  log.Named("weather-service"),
	}
}

func cacheKey(icao string) string {
	return "metar:" + icao
}

// Side returns the observation for a station
func (s *Service) Side(ctx context.Context, icao string) *flight.MetarSide {
	icao = strings.ToUpper(strings.TrimSpace(icao))

	var fetchErr error
	side, hit, err := cache.GetOrSet(ctx, s.cache, cacheKey(icao), s.opts.MetarTTL, func(ctx context.Context) (flight.MetarSide, error) {
		decoded, err := s.fetcher.FetchDecoded(ctx, icao)
		if err != nil {
			fetchErr = err
			return flight.MetarSide{}, err
		}
		side := decoded.ToSide()
		if side.ICAO == "" {
			side.ICAO = icao
		}
		if s.opts.MagneticWind {
			s.addMagneticWind(decoded, side)
		}
		return *side, nil
	})
	s.metrics.CacheResult("metar", hit)

	if fetchErr != nil {
		s.logger.Warn("METAR unavailable", logger.String("airport", icao), logger.Error(fetchErr))
		return &flight.MetarSide{ICAO: icao, Error: sideError(icao, fetchErr)}
	}
	if err != nil {
		s.logger.Warn("Failed to cache METAR", logger.String("airport", icao), logger.Error(err))
	}
	return &side
}

// addMagneticWind fills wind.degrees_magnetic from the station's declination
func (s *Service) addMagneticWind(decoded *DecodedMETAR, side *flight.MetarSide) {
	if side.Wind == nil || side.Wind.Degrees == nil {
		return
	}
	lat, lon, ok := decoded.Station.Position()
	if !ok {
		return
	}
	var elevFt float64
	if decoded.Elevation != nil && decoded.Elevation.Feet != nil {
		elevFt = *decoded.Elevation.Feet
	}

	variation := physics.CalculateMagneticVariation(lat, lon, elevFt, decoded.ObservedAt(s.opts.Clock.Now()))
	magnetic := float64(int(physics.TrueToMagnetic(*side.Wind.Degrees, variation) + 0.5))
	if magnetic == 0 {
		magnetic = 360
	}
	side.Wind.DegreesMagnetic = &magnetic
}

func sideError(icao string, err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return ErrNotConfigured.Error()
	case errors.Is(err, flight.ErrNotFound):
		return fmt.Sprintf("No METAR data found for %s", icao)
	default:
		return fmt.Sprintf("CheckWX request failed: %v", err)
	}
}
