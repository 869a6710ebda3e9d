package flight

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DateLayout is the flight date format AviationStack accepts
const DateLayout = "2006-01-02"

// Filter narrows a flight number lookup to a route and/or a day.
// The zero value matches everything.
type Filter struct {
	Departure string // IATA airport code
	Arrival   string // IATA airport code
	Date      string // YYYY-MM-DD
}

// NewFilter normalizes and checks the parts. Empty parts are left unset.
func NewFilter(departure, arrival, date string) (Filter, error) {
	f := Filter{
		Departure: strings.ToUpper(strings.TrimSpace(departure)),
		Arrival:   strings.ToUpper(strings.TrimSpace(arrival)),
		Date:      strings.TrimSpace(date),
	}
	for name, code := range map[string]string{"departure": f.Departure, "arrival": f.Arrival} {
		if code != "" && !isAirportCode(code) {
			return Filter{}, fmt.Errorf("invalid %s airport %q: expected a 3-letter IATA code", name, code)
		}
	}
	if f.Date != "" {
		if _, err := time.Parse(DateLayout, f.Date); err != nil {
			return Filter{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", f.Date)
		}
	}
	return f, nil
}

// ParseFilter reads dep, arr and date from query parameters
func ParseFilter(v url.Values) (Filter, error) {
	return NewFilter(v.Get("dep"), v.Get("arr"), v.Get("date"))
}

// Values encodes the set parts as dep, arr and date query parameters
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Departure != "" {
		v.Set("dep", f.Departure)
	}
	if f.Arrival != "" {
		v.Set("arr", f.Arrival)
	}
	if f.Date != "" {
		v.Set("date", f.Date)
	}
	return v
}

// Empty reports whether no part is set
func (f Filter) Empty() bool {
	return f == Filter{}
}

func (f Filter) String() string {
	if f.Empty() {
		return ""
	}
	parts := make([]string, 0, 3)
	if f.Departure != "" || f.Arrival != "" {
		parts = append(parts, orAny(f.Departure)+"-"+orAny(f.Arrival))
	}
	if f.Date != "" {
		parts = append(parts, f.Date)
	}
	return strings.Join(parts, " ")
}

func orAny(code string) string {
	if code == "" {
		return "*"
	}
	return code
}

func isAirportCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
