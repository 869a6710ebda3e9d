package terminal

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/lookup"
	"github.com/yegors/aeris/internal/view"
	"github.com/yegors/aeris/pkg/logger"
)

type fakeFetcher struct {
	queries []flight.Query
	filters []flight.Filter
}

func (f *fakeFetcher) FetchFlight(_ context.Context, q flight.Query, filter flight.Filter) (*lookup.Response, error) {
	f.queries = append(f.queries, q)
	f.filters = append(f.filters, filter)
	if q == "XX0" {
		return &lookup.Response{StatusCode: http.StatusNotFound, Body: flight.ErrorResponse("No data found for flight XX0")}, nil
	}
	lat, lon, alt, speed := 40.9, -1.2, 10972.8, 851.3
	return &lookup.Response{StatusCode: http.StatusOK, Body: flight.LookupResponse{Flight: &flight.Record{
		FlightStatus: "active",
		Arrival:      flight.Airport{Airport: "Barcelona El Prat", IATA: "BCN", Baggage: "12"},
		Airline:      flight.Airline{Name: "Iberia"},
		Flight:       flight.Ident{IATA: q.String()},
		Live:         &flight.Live{Latitude: &lat, Longitude: &lon, Altitude: &alt, SpeedHorizontal: &speed},
	}}}, nil
}

func newShell(t *testing.T, store lookup.Store) (*Shell, *fakeFetcher, *bytes.Buffer) {
	t.Helper()
	engine, err := view.NewEngine("en", logger.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	fetcher := &fakeFetcher{}
	c := lookup.NewController(lookup.Deps{
		Fetcher:  fetcher,
		Store:    store,
		View:     engine,
		Renderer: NewRenderer(&out),
		Map:      NewMap(&out, engine.Messages()),
		MapOpts:  lookup.MapOptions{Zoom: 8},
	}, logger.NewNop())
	c.Start(context.Background())
	return NewShell(c, engine, &out), fetcher, &out
}

func TestShell_Interactive(t *testing.T) {
	sh, fetcher, out := newShell(t, lookup.NewMemoryStore())

	input := strings.Join([]string{"ib3166", "", ":history", ":1", ":9", "xx0", ":q", "ignored"}, "\n")
	require.NoError(t, sh.Run(context.Background(), strings.NewReader(input)))

	text := out.String()
	assert.Contains(t, text, "Enter a flight number, :history")
	assert.Contains(t, text, "Flight: Iberia (IB3166)")
	assert.Contains(t, text, "Live position: 40.90000, -1.20000 (Flight: IB3166)")
	assert.Contains(t, text, "Baggage claim: 12")
	assert.Contains(t, text, "Live telemetry\n  Altitude: 10973 m\n  Speed: 851.3 km/h")
	assert.Contains(t, text, "Please enter a flight number.")
	assert.Contains(t, text, "Recent searches:\n  [1] IB3166")
	assert.Contains(t, text, "There is no recent search 9.")
	assert.Contains(t, text, "Error: No data found for flight XX0")

	assert.Equal(t, []flight.Query{"IB3166", "IB3166", "XX0"}, fetcher.queries)
}

func TestShell_Filter(t *testing.T) {
	sh, fetcher, out := newShell(t, lookup.NewMemoryStore())

	input := strings.Join([]string{
		":from mad", ":to bcn", ":date 2025-07-11", "ib3166",
		":to BARCELONA", ":filter",
		":date", "ib3166",
		":clear", "ib3166",
	}, "\n")
	require.NoError(t, sh.Run(context.Background(), strings.NewReader(input)))

	text := out.String()
	assert.Contains(t, text, "Filter: MAD-*\n")
	assert.Contains(t, text, "Filter: MAD-BCN 2025-07-11")
	assert.Contains(t, text, `Error: invalid arrival airport "BARCELONA"`)
	assert.Contains(t, text, "Filter: MAD-BCN\n")
	assert.Contains(t, text, "No filter.")

	require.Len(t, fetcher.filters, 3)
	assert.Equal(t, flight.Filter{Departure: "MAD", Arrival: "BCN", Date: "2025-07-11"}, fetcher.filters[0])
	assert.Equal(t, flight.Filter{Departure: "MAD", Arrival: "BCN"}, fetcher.filters[1])
	assert.True(t, fetcher.filters[2].Empty())
}

func TestShell_UnknownCommand(t *testing.T) {
	sh, fetcher, out := newShell(t, lookup.NewMemoryStore())

	require.NoError(t, sh.Run(context.Background(), strings.NewReader(":abc\n:1 2\n")))

	text := out.String()
	assert.Contains(t, text, "Unknown command: :abc\nEnter a flight number")
	assert.Contains(t, text, "Unknown command: :1 2")
	assert.NotContains(t, text, "There is no recent search")
	assert.Empty(t, fetcher.queries)
}

func TestShell_EmptyHistory(t *testing.T) {
	sh, _, out := newShell(t, lookup.NewMemoryStore())
	require.NoError(t, sh.Run(context.Background(), strings.NewReader(":history\n")))
	assert.Contains(t, out.String(), "No recent searches.")
}

func TestShell_Search(t *testing.T) {
	store := lookup.NewMemoryStore()
	sh, fetcher, _ := newShell(t, store)

	outcomes := sh.Search(context.Background(), []string{"ux1094", " ", "xx0"})
	require.Len(t, outcomes, 3)
	assert.Equal(t, lookup.StateSuccess, outcomes[0].State)
	assert.Equal(t, lookup.StateValidationError, outcomes[1].State)
	assert.Equal(t, lookup.StateBusinessError, outcomes[2].State)
	assert.Equal(t, []flight.Query{"UX1094", "XX0"}, fetcher.queries)

	// a new shell over the same store starts with the saved history
	_, _, out := newShell(t, store)
	assert.Contains(t, out.String(), "[1] UX1094")
}

func TestRenderer_SkipsHidden(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.Render(view.Instruction{Region: view.RegionWeather, Visible: false, Text: "stale"})
	r.Render(view.Instruction{Region: view.RegionResults, Visible: true, Text: "shown"})
	assert.Equal(t, "shown\n\n", out.String())
}
