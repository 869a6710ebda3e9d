package flight

import (
	"strings"
	"time"
)

// Query is a normalized flight identifier: trimmed, uppercased and never empty.
type Query string

// NormalizeQuery trims and uppercases raw input. Empty input yields a ValidationError.
func NormalizeQuery(raw string) (Query, error) {
	q := strings.ToUpper(strings.TrimSpace(raw))
	if q == "" {
		return "", &ValidationError{Input: raw}
	}
	return Query(q), nil
}

func (q Query) String() string { return string(q) }

// Airport is one end of a flight as reported by the flight data provider
type Airport struct {
	Airport   string `json:"airport,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	IATA      string `json:"iata,omitempty"`
	ICAO      string `json:"icao,omitempty"`
	Terminal  string `json:"terminal,omitempty"`
	Gate      string `json:"gate,omitempty"`
	Baggage   string `json:"baggage,omitempty"`
	Delay     *int   `json:"delay,omitempty"`
	Scheduled string `json:"scheduled,omitempty"`
	Estimated string `json:"estimated,omitempty"`
	Actual    string `json:"actual,omitempty"`
}

// Airline identifies the operating carrier
type Airline struct {
	Name string `json:"name,omitempty"`
	IATA string `json:"iata,omitempty"`
	ICAO string `json:"icao,omitempty"`
}

// Ident holds the flight's own identifiers
type Ident struct {
	Number string `json:"number,omitempty"`
	IATA   string `json:"iata,omitempty"`
	ICAO   string `json:"icao,omitempty"`
}

// Aircraft describes the airframe flying the leg
type Aircraft struct {
	Registration string `json:"registration,omitempty"`
	IATA         string `json:"iata,omitempty"`
	ICAO         string `json:"icao,omitempty"`
	ICAO24       string `json:"icao24,omitempty"`
}

// Live is the aircraft's last known position. Latitude is a pointer because a
// record may carry a live block without coordinates.
type Live struct {
	Updated         string   `json:"updated,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Altitude        *float64 `json:"altitude,omitempty"`         // metres
	Direction       *float64 `json:"direction,omitempty"`        // degrees true
	SpeedHorizontal *float64 `json:"speed_horizontal,omitempty"` // km/h
	SpeedVertical   *float64 `json:"speed_vertical,omitempty"`   // m/s
	IsGround        bool     `json:"is_ground,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// HasPosition reports whether the live block can place a marker
func (l *Live) HasPosition() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// Record is the flight as returned under "flight" by /api/flight/{n}.
// A non-empty Error marks a business failure.
type Record struct {
	FlightDate   string    `json:"flight_date,omitempty"`
	FlightStatus string    `json:"flight_status,omitempty"`
	Departure    Airport   `json:"departure"`
	Arrival      Airport   `json:"arrival"`
	Airline      Airline   `json:"airline"`
	Flight       Ident     `json:"flight"`
	Aircraft     *Aircraft `json:"aircraft,omitempty"`
	Live         *Live     `json:"live,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Wind observation. DegreesMagnetic is only present when the station position is known.
type Wind struct {
	Degrees         *float64 `json:"degrees,omitempty"`
	SpeedKts        *float64 `json:"speed_kts,omitempty"`
	DegreesMagnetic *float64 `json:"degrees_magnetic,omitempty"`
}

type Visibility struct {
	Meters *float64 `json:"meters,omitempty"`
}

type Temperature struct {
	Celsius *float64 `json:"celsius,omitempty"`
}

// MetarSide is a decoded observation for one airport, or an error marker
type MetarSide struct {
	ICAO        string       `json:"icao,omitempty"`
	Observed    string       `json:"observed,omitempty"`
	RawText     string       `json:"raw_text,omitempty"`
	Wind        *Wind        `json:"wind,omitempty"`
	Visibility  *Visibility  `json:"visibility,omitempty"`
	Temperature *Temperature `json:"temperature,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Usable reports whether the side can be rendered as an observation
func (s *MetarSide) Usable() bool {
	return s != nil && s.Error == ""
}

// Metar holds observations for both ends of a flight
type Metar struct {
	Departure *MetarSide `json:"departure,omitempty"`
	Arrival   *MetarSide `json:"arrival,omitempty"`
}

// Empty reports whether neither side is present
func (m *Metar) Empty() bool {
	return m == nil || (m.Departure == nil && m.Arrival == nil)
}

// LookupResponse is the body of GET /api/flight/{n}
type LookupResponse struct {
	Flight    *Record    `json:"flight,omitempty"`
	Metar     *Metar     `json:"metar,omitempty"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// ErrorResponse builds the body the backend sends with a non-ok status
func ErrorResponse(message string) LookupResponse {
	return LookupResponse{Flight: &Record{Error: message}}
}
