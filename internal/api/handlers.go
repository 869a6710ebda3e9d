package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/storage/sqlite"
	"github.com/yegors/aeris/internal/tracker"
	"github.com/yegors/aeris/pkg/logger"
)

// FlightService answers flight lookups; *tracker.Service implements it
type FlightService interface {
	Lookup(ctx context.Context, q flight.Query, filter flight.Filter) (*flight.LookupResponse, error)
	RecentLookups(ctx context.Context, limit int) ([]*sqlite.LookupRecord, error)
	CacheBackend() string
}

// SessionCounter reports connected page sessions; *websocket.Server implements it
type SessionCounter interface {
	ClientCount() int
}

// Pinger checks a dependency is reachable; *sqlite.Storage implements it
type Pinger interface {
	Ping() error
}

// Handler contains the API handlers
type Handler struct {
	flights  FlightService
	sessions SessionCounter
	storage  Pinger
	version  string
	started  time.Time
	logger   *logger.Logger
}

// NewHandler creates a new API handler. sessions and storage may be nil.
func NewHandler(flights FlightService, sessions SessionCounter, storage Pinger, version string, log *logger.Logger) *Handler {
	return &Handler{
		flights:  flights,
		sessions: sessions,
		storage:  storage,
		version:  version,
		started:  time.Now(),
		logger:   log.Named("api-handler"),
	}
}

// GetFlight returns the flight, its live position and METAR for both ends.
// Optional dep, arr and date parameters narrow the search.
// Failures keep the response shape: {"flight":{"error":"..."}}.
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "flightNumber")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}

	q, err := flight.NormalizeQuery(raw)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, flight.ErrorResponse("Flight number is required"))
		return
	}

	filter, err := flight.ParseFilter(r.URL.Query())
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, flight.ErrorResponse(err.Error()))
		return
	}

	resp, err := h.flights.Lookup(r.Context(), q, filter)
	if err != nil {
		var lerr *tracker.LookupError
		if errors.As(err, &lerr) {
			WriteJSON(w, lerr.StatusCode, flight.ErrorResponse(lerr.Message))
			return
		}
		h.logger.Error("Flight lookup failed",
			logger.String("flight", q.String()),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, flight.ErrorResponse("Internal error"))
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetHealth returns the server status
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"cache_backend":  h.flights.CacheBackend(),
	}
	if h.sessions != nil {
		response["page_sessions"] = h.sessions.ClientCount()
	}

	status := http.StatusOK
	if h.storage != nil {
		response["storage"] = "ok"
		if err := h.storage.Ping(); err != nil {
			h.logger.Error("Storage health check failed", logger.Error(err))
			response["status"] = "degraded"
			response["storage"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, status, response)
}

// GetLookups returns the most recent backend lookups, newest first
func (h *Handler) GetLookups(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	lookups, err := h.flights.RecentLookups(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read lookup log", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read lookup log"})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"lookups": lookups,
		"count":   len(lookups),
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
