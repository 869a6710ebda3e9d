package view

import (
	"strconv"
	"time"
)

// timestamp layouts seen from the flight data provider
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05",
}

// formatTimestamp renders a provider timestamp in the wall-clock time it was reported in.
// Unparseable values are shown as received.
func formatTimestamp(raw, layout string) string {
	if raw == "" {
		return ""
	}
	for _, l := range timestampLayouts {
		if t, err := time.Parse(l, raw); err == nil {
			return t.Format(layout)
		}
	}
	return raw
}

// formatNumber drops a trailing .0 so 220.0 reads as 220
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
