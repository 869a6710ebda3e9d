package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/pkg/logger"
)

// RateLimiter hands out one token bucket per client IP. Buckets of clients
// that went quiet are evicted after idleTTL.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	trusted map[string]bool
	metrics *metrics.Registry
	logger  *logger.Logger

	mu       sync.Mutex
	limiters *gocache.Cache
}

const idleTTL = 10 * time.Minute

// NewRateLimiter creates a limiter allowing perSecond sustained requests with
// the given burst. Trusted IPs are never limited.
func NewRateLimiter(perSecond float64, burst int, trusted []string, reg *metrics.Registry, log *logger.Logger) *RateLimiter {
	rl := &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		trusted:  make(map[string]bool, len(trusted)),
		metrics:  reg,
		logger:   log.Named("rate-limit"),
		limiters: gocache.New(idleTTL, idleTTL),
	}
	for _, ip := range trusted {
		rl.trusted[ip] = true
	}
	return rl
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(ip); ok {
		l := v.(*rate.Limiter)
		rl.limiters.SetDefault(ip, l)
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.SetDefault(ip, l)
	return l
}

// Middleware rejects requests over the client's rate with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if rl.trusted[ip] {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.limiterFor(ip).Allow() {
			if rl.metrics != nil {
				rl.metrics.RateLimitedTotal.Inc()
			}
			rl.logger.Debug("Rate limited request",
				logger.String("ip", ip),
				logger.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "1")
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// MetricsMiddleware records HTTP metrics for each request. The route pattern
// is read after routing so path parameters do not inflate label cardinality.
func MetricsMiddleware(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.HTTPRequestsInFlight.Inc()
			defer reg.HTTPRequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			reg.HTTPRequestsTotal.WithLabelValues(
				routePattern(r),
				r.Method,
				strconv.Itoa(statusOf(ww)),
			).Inc()
			reg.HTTPRequestDuration.WithLabelValues(
				routePattern(r),
				r.Method,
			).Observe(time.Since(start).Seconds())
		})
	}
}

// RequestLogger logs every completed request
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Debug("HTTP request completed",
				logger.String("request_id", middleware.GetReqID(r.Context())),
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.String("endpoint", routePattern(r)),
				logger.Int("status_code", statusOf(ww)),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Duration("duration", time.Since(start)))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
