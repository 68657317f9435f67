package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	assert.Zero(t, Distance(40.7128, -74.0060, 40.7128, -74.0060))
}

func TestDistanceIsSymmetric(t *testing.T) {
	points := [][2]float64{
		{40.7128, -74.0060},
		{40.7129, -74.0061},
		{41.0, -75.0},
		{-33.8688, 151.2093},
		{0, 179.9},
		{0, -179.9},
	}
	for _, a := range points {
		for _, b := range points {
			assert.InDelta(t, Distance(a[0], a[1], b[0], b[1]), Distance(b[0], b[1], a[0], a[1]), 1e-9)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// Roughly 14 metres between two nearby Manhattan points.
	assert.InDelta(t, 0.014, Distance(40.7128, -74.0060, 40.7129, -74.0061), 0.002)
	// Manhattan to a point in eastern Pennsylvania.
	d := Distance(40.7128, -74.0060, 41.0, -75.0)
	assert.Greater(t, d, 30.0)
	assert.Less(t, d, 100.0)
	// One degree of latitude.
	assert.InDelta(t, 111.19, Distance(0, 0, 1, 0), 0.05)
}

func TestDistanceMonotonic(t *testing.T) {
	prev := 0.0
	for step := 1; step <= 50; step++ {
		d := Distance(40.0, -74.0, 40.0+float64(step)*0.01, -74.0)
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestIsValidCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{-90.0001, 0, false},
		{0, 180.0001, false},
		{0, -180.0001, false},
		{math.NaN(), 0, false},
		{0, math.NaN(), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsValidCoordinates(tc.lat, tc.lon), "lat=%v lon=%v", tc.lat, tc.lon)
	}
}
