package view

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"math"
	"strings"
	texttemplate "text/template"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/pkg/logger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = map[string]any{
	"inc": func(i int) int { return i + 1 },
}

// Engine projects typed view models into render instructions
type Engine struct {
	html   *htmltemplate.Template
	text   *texttemplate.Template
	msgs   Messages
	logger *logger.Logger
}

// NewEngine parses the embedded templates for the given locale
func NewEngine(locale string, log *logger.Logger) (*Engine, error) {
	msgs, err := MessagesFor(locale)
	if err != nil {
		return nil, err
	}

	html, err := htmltemplate.New("html").Funcs(funcs).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html templates: %w", err)
	}
	text, err := texttemplate.New("text").Funcs(funcs).ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}

	return &Engine{
		html:   html,
		text:   text,
		msgs:   msgs,
		logger: log.Named("view"),
	}, nil
}

// Messages returns the engine's message catalog
func (e *Engine) Messages() Messages {
	return e.msgs
}

// render executes the html and text variants of a template pair
func (e *Engine) render(name string, region Region, kind Kind, model any) Instruction {
	data := templateData{L: e.msgs, V: model}
	in := Instruction{Region: region, Visible: true, Kind: kind}

	var hbuf bytes.Buffer
	if err := e.html.ExecuteTemplate(&hbuf, name+".html.tmpl", data); err != nil {
		e.logger.Error("Failed to render html template", logger.String("template", name), logger.Error(err))
	} else {
		in.HTML = htmltemplate.HTML(strings.TrimSpace(hbuf.String()))
	}

	var tbuf bytes.Buffer
	if err := e.text.ExecuteTemplate(&tbuf, name+".txt.tmpl", data); err != nil {
		e.logger.Error("Failed to render text template", logger.String("template", name), logger.Error(err))
	} else {
		in.Text = strings.TrimSpace(tbuf.String())
	}
	return in
}

// Hidden hides a region without touching its content
func (e *Engine) Hidden(region Region) Instruction {
	return Instruction{Region: region, Visible: false}
}

// Loading is the results body shown while a lookup is in flight
func (e *Engine) Loading() Instruction {
	return e.render("message", RegionResults, KindLoading, messageView{Text: e.msgs.Loading, Class: "loading", Loading: true})
}

// ValidationMessage asks for a flight number
func (e *Engine) ValidationMessage() Instruction {
	return e.errorMessage(e.msgs.EnterFlight)
}

// BusinessFailure shows the backend's reason or the generic no-data text
func (e *Engine) BusinessFailure(reason string) Instruction {
	return e.errorMessage(e.msgs.Failure(reason))
}

// ConnectionError is shown for transport failures
func (e *Engine) ConnectionError() Instruction {
	return e.errorMessage(e.msgs.ConnectionError)
}

func (e *Engine) errorMessage(text string) Instruction {
	return e.render("message", RegionResults, KindError, messageView{Text: text, Class: "error"})
}

// FlightSummary renders the results region for a successful lookup
func (e *Engine) FlightSummary(rec *flight.Record) Instruction {
	return e.render("flight", RegionResults, KindContent, e.flightModel(rec))
}

func (e *Engine) flightModel(rec *flight.Record) FlightSummary {
	return FlightSummary{
		Airline:   e.orNA(rec.Airline.Name),
		IATA:      e.orNA(rec.Flight.IATA),
		Status:    e.orNA(rec.FlightStatus),
		Departure: e.airportModel(e.msgs.Departure, rec.Departure),
		Arrival:   e.airportModel(e.msgs.Arrival, rec.Arrival),
		Live:      e.liveModel(rec.Live),
	}
}

func (e *Engine) liveModel(l *flight.Live) *LiveView {
	if l == nil || (l.Altitude == nil && l.SpeedHorizontal == nil) {
		return nil
	}
	v := &LiveView{Altitude: e.msgs.NotAvailable, Speed: e.msgs.NotAvailable}
	if l.Altitude != nil {
		v.Altitude = fmt.Sprintf(e.msgs.AltitudeFormat, formatNumber(math.Round(*l.Altitude)))
	}
	if l.SpeedHorizontal != nil {
		v.Speed = fmt.Sprintf(e.msgs.SpeedFormat, formatNumber(math.Round(*l.SpeedHorizontal*100)/100))
	}
	return v
}

func (e *Engine) airportModel(label string, a flight.Airport) AirportView {
	return AirportView{
		Label:     label,
		Name:      e.orNA(a.Airport),
		IATA:      e.orNA(a.IATA),
		Scheduled: e.orNA(formatTimestamp(a.Scheduled, e.msgs.DateLayout)),
		Estimated: formatTimestamp(a.Estimated, e.msgs.DateLayout),
		Terminal:  a.Terminal,
		Gate:      a.Gate,
		Baggage:   a.Baggage,
	}
}

// WeatherSummary renders the weather region. When neither side is present the
// region is hidden; otherwise each side renders on its own, falling back to a
// placeholder when errored or missing.
func (e *Engine) WeatherSummary(m *flight.Metar) Instruction {
	if m.Empty() {
		return e.Hidden(RegionWeather)
	}
	model := WeatherSummary{
		Departure: e.metarModel(e.msgs.Departure, m.Departure),
		Arrival:   e.metarModel(e.msgs.Arrival, m.Arrival),
	}
	return e.render("weather", RegionWeather, KindContent, model)
}

func (e *Engine) metarModel(label string, side *flight.MetarSide) MetarView {
	if !side.Usable() {
		return MetarView{Missing: fmt.Sprintf(e.msgs.NoMetarFor, label)}
	}

	heading := fmt.Sprintf(e.msgs.AirportOf, label)
	if side.ICAO != "" {
		heading += " (" + side.ICAO + ")"
	}
	view := MetarView{
		Heading:     heading,
		Wind:        e.na(),
		Visibility:  e.na(),
		Temperature: e.na(),
	}

	if w := side.Wind; w != nil && (w.Degrees != nil || w.SpeedKts != nil) {
		view.Wind = fmt.Sprintf(e.msgs.WindFormat, e.numberOrNA(w.Degrees), e.numberOrNA(w.SpeedKts))
		if w.DegreesMagnetic != nil {
			view.MagneticWind = fmt.Sprintf(e.msgs.MagneticFormat, formatNumber(*w.DegreesMagnetic))
		}
	}
	if side.Visibility != nil && side.Visibility.Meters != nil {
		view.Visibility = formatNumber(*side.Visibility.Meters) + " m"
	}
	if side.Temperature != nil && side.Temperature.Celsius != nil {
		view.Temperature = formatNumber(*side.Temperature.Celsius) + "°C"
	}
	return view
}

// History renders the recent-searches region, hidden when empty
func (e *Engine) History(entries []string) Instruction {
	if len(entries) == 0 {
		return e.Hidden(RegionHistory)
	}
	return e.render("history", RegionHistory, KindContent, HistoryView{Entries: entries})
}

func (e *Engine) na() string { return e.msgs.NotAvailable }

func (e *Engine) numberOrNA(v *float64) string {
	if v == nil {
		return e.msgs.NotAvailable
	}
	return formatNumber(*v)
}

func (e *Engine) orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return e.msgs.NotAvailable
	}
	return s
}
