package flight

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuery(t *testing.T) {
	for _, raw := range []string{" ab123 ", "AB123", "\tab123\n", "Ab123"} {
		q, err := NormalizeQuery(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, Query("AB123"), q)
	}
}

func TestNormalizeQuery_EmptyIsValidationError(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := NormalizeQuery(raw)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "input %q", raw)
	}
}

func TestMetarEmpty(t *testing.T) {
	var nilMetar *Metar
	assert.True(t, nilMetar.Empty())
	assert.True(t, (&Metar{}).Empty())
	assert.False(t, (&Metar{Arrival: &MetarSide{Error: "no data"}}).Empty())
}

func TestMetarSideUsable(t *testing.T) {
	var side *MetarSide
	assert.False(t, side.Usable())
	assert.False(t, (&MetarSide{Error: "x"}).Usable())
	assert.True(t, (&MetarSide{ICAO: "LEMD"}).Usable())
}

func TestLiveHasPosition(t *testing.T) {
	lat, lon := 40.4, -3.7
	var live *Live
	assert.False(t, live.HasPosition())
	assert.False(t, (&Live{Longitude: &lon}).HasPosition())
	assert.True(t, (&Live{Latitude: &lat, Longitude: &lon}).HasPosition())
}

func TestLookupResponse_DecodesBackendShape(t *testing.T) {
	body := `{
		"flight": {
			"flight_status": "active",
			"departure": {"airport": "Madrid Barajas", "iata": "MAD", "icao": "LEMD", "scheduled": "2024-05-01T10:00:00+00:00"},
			"arrival": {"airport": "El Prat", "iata": "BCN", "icao": "LEBL", "delay": null},
			"airline": {"name": "Iberia"},
			"flight": {"iata": "IB1234"},
			"live": {"latitude": 41.1, "longitude": 1.2}
		},
		"metar": {"departure": {"icao": "LEMD", "wind": {"degrees": 220, "speed_kts": 8}}, "arrival": {"error": "No METAR data available"}}
	}`
	var resp LookupResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	require.NotNil(t, resp.Flight)
	assert.Equal(t, "IB1234", resp.Flight.Flight.IATA)
	assert.Nil(t, resp.Flight.Arrival.Delay)
	assert.True(t, resp.Flight.Live.HasPosition())
	assert.True(t, resp.Metar.Departure.Usable())
	assert.False(t, resp.Metar.Arrival.Usable())
	assert.InDelta(t, 220, *resp.Metar.Departure.Wind.Degrees, 0.001)
}

func TestErrorResponse(t *testing.T) {
	data, err := json.Marshal(ErrorResponse("No data found for flight XX1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"flight":{"departure":{},"arrival":{},"airline":{},"flight":{},"error":"No data found for flight XX1"}}`, string(data))
}

func TestTransportFailureUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("search: %w", &TransportFailure{Err: cause})
	assert.ErrorIs(t, err, cause)

	var tf *TransportFailure
	require.ErrorAs(t, err, &tf)
	assert.Contains(t, tf.Error(), "connection refused")
}
