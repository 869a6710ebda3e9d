package weather

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// RMK T-group: T s ttt s ddd (s=sign 0=pos,1=neg; ttt=temp*10)
	reTGroup = regexp.MustCompile(`\bT([01])(\d{3})[01]\d{3}\b`)
	// Temperature/dewpoint group: " 22/10", " M03/M05", " 00/M01", " 05/"
	reStandard = regexp.MustCompile(`(?:^|\s)(M)?(\d{2})/(?:M?\d{2})?(?:\s|$)`)
)

// ParseTemperature extracts the temperature in Celsius from a raw METAR.
// The precise RMK T-group wins over the whole-degree temperature/dewpoint group.
func ParseTemperature(raw string) (float64, bool) {
	if idx := strings.Index(raw, " RMK "); idx >= 0 {
		if matches := reTGroup.FindStringSubmatch(raw[idx:]); len(matches) == 3 {
			val, err := strconv.ParseFloat(matches[2], 64)
			if err == nil {
				val = val / 10.0
				if matches[1] == "1" {
					val = -val
				}
				return val, true
			}
		}
		raw = raw[:idx]
	}

	matches := reStandard.FindStringSubmatch(raw)
	if len(matches) == 3 {
		val, err := strconv.ParseFloat(matches[2], 64)
		if err == nil {
			if matches[1] == "M" {
				val = -val
			}
			return val, true
		}
	}

	return 0, false
}
