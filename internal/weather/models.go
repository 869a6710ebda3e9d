package weather

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/aeris/internal/flight"
)

// DecodedResponse is the body of CheckWX GET /metar/{icao}/decoded
type DecodedResponse struct {
	Results int            `json:"results"`
	Data    []DecodedMETAR `json:"data"`
}

// DecodedMETAR is one decoded observation
type DecodedMETAR struct {
	ICAO        string       `json:"icao"`
	Observed    string       `json:"observed"`
	RawText     string       `json:"raw_text"`
	Station     Station      `json:"station"`
	Wind        *DecodedWind `json:"wind,omitempty"`
	Visibility  *DecodedVis  `json:"visibility,omitempty"`
	Temperature *DecodedTemp `json:"temperature,omitempty"`
	Elevation   *Elevation   `json:"elevation,omitempty"`
}

// Station carries the reporting station's location as GeoJSON
type Station struct {
	Name     string `json:"name"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat
	} `json:"geometry"`
}

// Position returns the station latitude and longitude when known
func (s Station) Position() (lat, lon float64, ok bool) {
	if len(s.Geometry.Coordinates) < 2 {
		return 0, 0, false
	}
	return s.Geometry.Coordinates[1], s.Geometry.Coordinates[0], true
}

// DecodedWind is the decoded wind group
type DecodedWind struct {
	Degrees  *float64 `json:"degrees,omitempty"`
	SpeedKts *float64 `json:"speed_kts,omitempty"`
}

// DecodedVis is the decoded visibility group. CheckWX reports meters as a
// formatted string ("10,000") and meters_float as a number.
type DecodedVis struct {
	Meters      Number   `json:"meters"`
	MetersFloat *float64 `json:"meters_float,omitempty"`
}

// DecodedTemp is the decoded temperature group
type DecodedTemp struct {
	Celsius *float64 `json:"celsius,omitempty"`
}

// Elevation of the station
type Elevation struct {
	Feet *float64 `json:"feet,omitempty"`
}

// Number accepts JSON numbers and numeric strings with thousands separators
type Number struct {
	Value *float64
}

func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.Value = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	// "10000+" style values keep their lower bound
	s = strings.TrimRight(s, "+")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n.Value = &f
	}
	return nil
}

// ToSide converts the observation into the lookup response shape. Temperature
// missing from the decoded groups is recovered from the raw text.
func (m *DecodedMETAR) ToSide() *flight.MetarSide {
	side := &flight.MetarSide{
		ICAO:     m.ICAO,
		Observed: m.Observed,
		RawText:  m.RawText,
	}

	if m.Wind != nil {
		side.Wind = &flight.Wind{Degrees: m.Wind.Degrees, SpeedKts: m.Wind.SpeedKts}
	}

	if m.Visibility != nil {
		meters := m.Visibility.MetersFloat
		if meters == nil {
			meters = m.Visibility.Meters.Value
		}
		if meters != nil {
			side.Visibility = &flight.Visibility{Meters: meters}
		}
	}

	switch {
	case m.Temperature != nil && m.Temperature.Celsius != nil:
		side.Temperature = &flight.Temperature{Celsius: m.Temperature.Celsius}
	default:
		if c, ok := ParseTemperature(m.RawText); ok {
			side.Temperature = &flight.Temperature{Celsius: &c}
		}
	}

	return side
}

// ObservedAt parses the observation time, falling back to fallback
func (m *DecodedMETAR) ObservedAt(fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, m.Observed); err == nil {
			return t
		}
	}
	return fallback
}

// ClientConfig configures the CheckWX client
type ClientConfig struct {
	APIBaseURL            string
	APIKey                string
	RequestTimeoutSeconds int
	MaxRetries            int
}
