package view

import "html/template"

// Region is one of the page's independently rendered areas
type Region string

const (
	RegionResults Region = "results"
	RegionWeather Region = "weather"
	RegionMap     Region = "map"
	RegionHistory Region = "history"
)

// Kind tells the page how to style a results body
type Kind string

const (
	KindContent Kind = "content"
	KindLoading Kind = "loading"
	KindError   Kind = "error"
)

// Instruction replaces the content and visibility of one region.
// HTML and Text are two renderings of the same view model.
type Instruction struct {
	Region  Region        `json:"region"`
	Visible bool          `json:"visible"`
	Kind    Kind          `json:"kind,omitempty"`
	HTML    template.HTML `json:"html,omitempty"`
	Text    string        `json:"text,omitempty"`
}

// Renderer applies instructions to a display surface
type Renderer interface {
	Render(Instruction)
}

// AirportView is one end of the flight summary
type AirportView struct {
	Label     string
	Name      string
	IATA      string
	Scheduled string
	Estimated string
	Terminal  string
	Gate      string
	Baggage   string
}

// LiveView is the telemetry block of the flight summary
type LiveView struct {
	Altitude string
	Speed    string
}

// FlightSummary is the typed model behind the results region
type FlightSummary struct {
	Airline   string
	IATA      string
	Status    string
	Departure AirportView
	Arrival   AirportView
	Live      *LiveView // nil when the flight reports no altitude or speed
}

// Ends lists departure then arrival
func (f FlightSummary) Ends() []AirportView {
	return []AirportView{f.Departure, f.Arrival}
}

// MetarView is one side of the weather summary
type MetarView struct {
	Heading      string
	Missing      string // placeholder text when the side has no usable observation
	Wind         string
	MagneticWind string
	Visibility   string
	Temperature  string
}

// WeatherSummary is the typed model behind the weather region
type WeatherSummary struct {
	Departure MetarView
	Arrival   MetarView
}

// Sides lists departure then arrival
func (w WeatherSummary) Sides() []MetarView {
	return []MetarView{w.Departure, w.Arrival}
}

// HistoryView is the typed model behind the recent-searches region
type HistoryView struct {
	Entries []string
}

type messageView struct {
	Text    string
	Class   string
	Loading bool
}

// templateData is what every template executes against
type templateData struct {
	L Messages
	V any
}
