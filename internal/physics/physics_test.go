package physics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{359.5, 359.5},
		{360, 0},
		{-10, 350},
		{725, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeHeading(tt.in), 1e-9)
	}
}

func TestTrueToMagnetic(t *testing.T) {
	// Westerly variation adds, easterly subtracts
	assert.InDelta(t, 230, TrueToMagnetic(220, -10), 1e-9)
	assert.InDelta(t, 355, TrueToMagnetic(5, 10), 1e-9)
}

func TestCalculateMagneticVariation(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Madrid sits close to the agonic line; New York is well west
	madrid := CalculateMagneticVariation(40.47, -3.56, 2000, date)
	newYork := CalculateMagneticVariation(40.64, -73.78, 13, date)

	assert.InDelta(t, 1.0, madrid, 2.0)
	assert.InDelta(t, -12.8, newYork, 2.0)
}
