package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// metersToLatDelta 返回同经线上相距 m 米的纬度差（度）
func metersToLatDelta(m float64) float64 {
	return m / EarthRadiusMeters * 180 / math.Pi
}

func TestDistance_Zero(t *testing.T) {
	assert.Equal(t, 0.0, Distance(0, 0, 0, 0))
	for _, p := range [][2]float64{{40.758, -73.9855}, {-33.8688, 151.2093}, {90, 180}, {-90, -180}} {
		assert.Equal(t, 0.0, Distance(p[0], p[1], p[0], p[1]), "point %v", p)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := Distance(40.7580, -73.9855, 40.7851, -73.9683)
	b := Distance(40.7851, -73.9683, 40.7580, -73.9855)
	assert.Equal(t, a, b)
}

func TestDistance_Reference(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		want       float64
		tol        float64
	}{
		{"times square to near", 40.7580, -73.9855, 40.75805, -73.98554, 6.5009, 0.001},
		{"times square to central park", 40.7580, -73.9855, 40.7851, -73.9683, 3343.41, 0.01},
		{"london to new york", 51.5007, -0.1246, 40.6892, -74.0445, 5574840.46, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.tol)
		})
	}
}

func TestWithin_Threshold(t *testing.T) {
	base := 10.0
	tests := []struct {
		meters float64
		close  bool
	}{
		{0, true},
		{6, true},
		{29.98, true},
		{30.02, false},
		{31, false},
		{500, false},
	}
	for _, tt := range tests {
		lat2 := base + metersToLatDelta(tt.meters)
		assert.InDelta(t, tt.meters, Distance(base, 20, lat2, 20), 1e-6)
		assert.Equal(t, tt.close, Within(base, 20, lat2, 20, ProximityMeters), "%.2fm", tt.meters)
	}
}

func TestGeohash(t *testing.T) {
	assert.Equal(t, "u4pruydqqvj", Geohash(57.64911, 10.40744, 11))
	assert.Equal(t, "dr5ru7v", Geohash(40.7580, -73.9855, 7))
	assert.Equal(t, "", Geohash(1, 1, 0))
}
