package lookup

import (
	"context"
	"errors"
	"sync"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/view"
	"github.com/yegors/aeris/pkg/logger"
)

// State of the results region
type State string

const (
	StateIdle            State = "idle"
	StateLoading         State = "loading"
	StateSuccess         State = "success"
	StateBusinessError   State = "business_error"
	StateTransportError  State = "transport_error"
	StateValidationError State = "validation_error"
)

// Outcome describes how a search ended. Err carries the failure for
// diagnostics; it has already been shown to the user.
type Outcome struct {
	Query flight.Query
	State State
	Err   error
	Stale bool // a newer search started before this one finished; nothing was rendered
}

// Deps are the capabilities a controller drives
type Deps struct {
	Fetcher  Fetcher
	Store    Store
	View     *view.Engine
	Renderer view.Renderer
	Map      MapSurface
	MapOpts  MapOptions
}

// Controller runs searches for one page session. Display regions, the
// recent-searches list and the map are owned by it; concurrent searches are
// sequenced so only the latest submission renders its result.
type Controller struct {
	fetcher Fetcher
	store   Store
	view    *view.Engine
	out     view.Renderer
	maps    MapSurface
	mapOpts MapOptions
	logger  *logger.Logger

	mu      sync.Mutex
	seq     uint64
	state   State
	input   string
	filter  flight.Filter
	history *History
	mapView mapState
}

// NewController wires a controller. Call Start before the first search.
func NewController(deps Deps, log *logger.Logger) *Controller {
	return &Controller{
		fetcher: deps.Fetcher,
		store:   deps.Store,
		view:    deps.View,
		out:     deps.Renderer,
		maps:    deps.Map,
		mapOpts: deps.MapOpts,
		logger:  log.Named("lookup"),
		state:   StateIdle,
		history: &History{},
	}
}

// Start loads the persisted recent searches and renders them
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadHistory(ctx)
	c.renderHistory()
}

// SetInput records the current text-input value
func (c *Controller) SetInput(value string) {
	c.mu.Lock()
	c.input = value
	c.mu.Unlock()
}

// Input returns the current text-input value
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetFilter narrows later searches to a route and/or date. The zero
// Filter clears it.
func (c *Controller) SetFilter(f flight.Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Filter returns the filter applied to searches
func (c *Controller) Filter() flight.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// State returns the results-region state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the recent searches, most recent first
func (c *Controller) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}

// SelectHistory replays a recent search: the input takes the entry's value
// and a search runs for it.
func (c *Controller) SelectHistory(ctx context.Context, id string) Outcome {
	c.SetInput(id)
	return c.SubmitSearch(ctx, id)
}

// SubmitSearch looks up a flight. An empty raw value searches the current
// input. Failures are rendered and reported in the Outcome; nothing panics
// or propagates beyond it.
func (c *Controller) SubmitSearch(ctx context.Context, raw string) Outcome {
	c.mu.Lock()
	if raw == "" {
		raw = c.input
	}
	c.seq++
	seq := c.seq
	filter := c.filter

	q, err := flight.NormalizeQuery(raw)
	if err != nil {
		c.state = StateValidationError
		c.out.Render(c.view.ValidationMessage())
		c.mu.Unlock()
		return Outcome{State: StateValidationError, Err: err}
	}

	c.state = StateLoading
	c.out.Render(c.view.Loading())
	c.out.Render(c.view.Hidden(view.RegionWeather))
	c.out.Render(c.view.Hidden(view.RegionMap))
	c.mu.Unlock()

	resp, fetchErr := c.fetcher.FetchFlight(ctx, q, filter)

	c.mu.Lock()
	defer c.mu.Unlock()

	out := classify(q, resp, fetchErr)
	if seq != c.seq {
		c.logger.Debug("Dropping stale lookup result",
			logger.String("flight", q.String()),
			logger.String("state", string(out.State)))
		out.Stale = true
		return out
	}

	c.state = out.State
	switch out.State {
	case StateSuccess:
		c.recordHistory(ctx, q.String())
		c.out.Render(c.view.FlightSummary(resp.Body.Flight))
		c.out.Render(c.view.WeatherSummary(resp.Body.Metar))
		c.updateMap(resp.Body.Flight)
	case StateBusinessError:
		var bf *flight.BusinessFailure
		errors.As(out.Err, &bf)
		c.logger.Info("Flight lookup returned no data",
			logger.String("flight", q.String()),
			logger.Int("status_code", bf.StatusCode),
			logger.String("reason", bf.Message))
		c.out.Render(c.view.BusinessFailure(bf.Message))
	case StateTransportError:
		c.logger.Error("Flight lookup request failed",
			logger.String("flight", q.String()),
			logger.Error(out.Err))
		c.out.Render(c.view.ConnectionError())
	}
	return out
}

// classify applies the success condition: ok status, a flight, and no flight.error
func classify(q flight.Query, resp *Response, err error) Outcome {
	if err != nil {
		var tf *flight.TransportFailure
		if !errors.As(err, &tf) {
			err = &flight.TransportFailure{Err: err}
		}
		return Outcome{Query: q, State: StateTransportError, Err: err}
	}
	if !resp.OK() || resp.Body.Flight == nil || resp.Body.Flight.Error != "" {
		bf := &flight.BusinessFailure{StatusCode: resp.StatusCode}
		if resp.Body.Flight != nil {
			bf.Message = resp.Body.Flight.Error
		}
		return Outcome{Query: q, State: StateBusinessError, Err: bf}
	}
	return Outcome{Query: q, State: StateSuccess}
}

// recordHistory puts a new identifier at the front, persists and re-renders
func (c *Controller) recordHistory(ctx context.Context, id string) {
	if !c.history.Add(id) {
		return
	}
	c.persistHistory(ctx)
	c.renderHistory()
}

func (c *Controller) persistHistory(ctx context.Context) {
	encoded, err := c.history.Encode()
	if err != nil {
		c.logger.Error("Failed to encode recent searches", logger.Error(err))
		return
	}
	if err := c.store.Set(ctx, HistoryKey, encoded); err != nil {
		c.logger.Error("Failed to persist recent searches", logger.Error(err))
	}
}

// loadHistory reads the persisted list; absent or unreadable leaves it empty
func (c *Controller) loadHistory(ctx context.Context) {
	raw, ok, err := c.store.Get(ctx, HistoryKey)
	if err != nil {
		c.logger.Warn("Failed to read recent searches", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	h, err := DecodeHistory(raw)
	if err != nil {
		c.logger.Warn("Ignoring unreadable recent searches", logger.Error(err))
		return
	}
	c.history = h
	c.logger.Debug("Loaded recent searches", logger.Int("count", h.Len()))
}

func (c *Controller) renderHistory() {
	c.out.Render(c.view.History(c.history.Entries()))
}

// updateMap places the live position. Without one the map region is hidden
// and the existing map is kept. The map is created once; later results
// move the marker and recenter.
func (c *Controller) updateMap(rec *flight.Record) {
	if !rec.Live.HasPosition() {
		c.out.Render(c.view.Hidden(view.RegionMap))
		return
	}

	c.out.Render(view.Instruction{Region: view.RegionMap, Visible: true})

	p := Point{Lat: *rec.Live.Latitude, Lon: *rec.Live.Longitude}
	if !c.mapView.created {
		c.maps.Create(p, c.mapOpts.Zoom)
		c.maps.AddTileLayer(c.mapOpts.TileURL, c.mapOpts.Attribution)
		c.maps.AddMarker(p)
		c.mapView.created = true
	} else {
		c.maps.SetView(p)
		c.maps.MoveMarker(p)
	}
	c.mapView.marker = p

	c.maps.BindPopup(c.view.Messages().Popup(rec.Flight.IATA))
	c.maps.OpenPopup()
	c.maps.FitBounds([]Point{p})
}

// MapCreated reports whether the map instance exists
func (c *Controller) MapCreated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapView.created
}

// MarkerPosition returns where the marker was last placed
func (c *Controller) MarkerPosition() (Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapView.marker, c.mapView.created
}
