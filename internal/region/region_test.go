package region

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rname   string
		lat     float64
		lon     float64
		owner   int32
		wantErr error
	}{
		{"ok", "Times Square", 40.758, -73.9855, 1, nil},
		{"bounds inclusive", "pole", 90, -180, 0, nil},
		{"empty name", "", 1, 1, 1, ErrEmptyName},
		{"lat high", "x", 90.0001, 0, 1, ErrLatitudeRange},
		{"lat nan", "x", math.NaN(), 0, 1, ErrLatitudeRange},
		{"lon low", "x", 0, -180.5, 1, ErrLongitudeRange},
		{"owner negative", "x", 0, 0, -1, ErrNegativeOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rname, tt.lat, tt.lon, tt.owner)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEqual(t *testing.T) {
	a := Region{Name: "a", Latitude: 1, Longitude: 2, Timestamp: 3, OwnerID: 4}
	assert.True(t, a.Equal(a))
	b := a
	b.Timestamp = 5
	assert.False(t, a.Equal(b))
	assert.True(t, a.SameName("a"))
	assert.False(t, a.SameName("A"))
}

func TestNow_Monotonic(t *testing.T) {
	prev := Now()
	for i := 0; i < 1000; i++ {
		n := Now()
		require.GreaterOrEqual(t, n, prev)
		prev = n
	}
}
