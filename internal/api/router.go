package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yegors/aeris/internal/config"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/pkg/logger"
)

// Router assembles the HTTP surface: the backend API, page sessions,
// metrics and the static page.
type Router struct {
	handler  *Handler
	limiter  *RateLimiter
	static   http.Handler
	sessions http.Handler
	metrics  *metrics.Registry
	cors     []string
	logger   *logger.Logger
}

// RouterDeps are the pieces a Router mounts. Sessions and Storage may be nil.
type RouterDeps struct {
	Flights  FlightService
	Sessions interface {
		http.Handler
		SessionCounter
	}
	Storage Pinger
	Metrics *metrics.Registry
	Version string
}

// NewRouter creates a new router
func NewRouter(deps RouterDeps, cfg config.ServerConfig, log *logger.Logger) *Router {
	rt := &Router{
		metrics: deps.Metrics,
		cors:    cfg.CORSAllowedOrigins,
		static:  NewStaticFileHandler(cfg.StaticFilesDir, log),
		logger:  log.Named("router"),
	}

	var counter SessionCounter
	if deps.Sessions != nil {
		rt.sessions = deps.Sessions
		counter = deps.Sessions
	}
	rt.handler = NewHandler(deps.Flights, counter, deps.Storage, deps.Version, log)

	if cfg.RateLimitPerSecond > 0 {
		rt.limiter = NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, cfg.TrustedIPs, deps.Metrics, log)
	}
	return rt
}

// Routes returns the router's handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(MetricsMiddleware(rt.metrics))
	}
	r.Use(RequestLogger(rt.logger))

	if len(rt.cors) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cors,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		if rt.limiter != nil {
			r.Use(rt.limiter.Middleware)
		}
		r.Get("/flight/{flightNumber}", rt.handler.GetFlight)
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/lookups", rt.handler.GetLookups)
	})

	if rt.sessions != nil {
		r.Handle("/ws", rt.sessions)
	}
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}
	r.Handle("/*", rt.static)

	return r
}
