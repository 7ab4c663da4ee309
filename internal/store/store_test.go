package store

import (
	"context"
	"region-sync/internal/region"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(name string, lat, lon float64) region.Region {
	return region.Region{Name: name, Latitude: lat, Longitude: lon, Timestamp: 1712345678901234567, OwnerID: 7}
}

func TestDecodeFields(t *testing.T) {
	good := map[string]string{"name": "Times Square", "latitude": "40.758", "longitude": "-73.9855", "timestamp": "99", "user": "3"}
	rec, err := decodeFields(4, good)
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Index)
	assert.Equal(t, region.Region{Name: "Times Square", Latitude: 40.758, Longitude: -73.9855, Timestamp: 99, OwnerID: 3}, rec.Region)

	tests := []struct {
		name  string
		mut   func(m map[string]string)
		field string
	}{
		{"missing name", func(m map[string]string) { delete(m, "name") }, "name"},
		{"bad latitude", func(m map[string]string) { m["latitude"] = "north" }, "latitude"},
		{"missing longitude", func(m map[string]string) { delete(m, "longitude") }, "longitude"},
		{"bad timestamp", func(m map[string]string) { m["timestamp"] = "1.5" }, "timestamp"},
		{"user overflow", func(m map[string]string) { m["user"] = "9999999999" }, "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := map[string]string{}
			for k, v := range good {
				m[k] = v
			}
			tt.mut(m)
			_, err := decodeFields(1, m)
			assert.ErrorIs(t, err, ErrMalformedRecord)
			assert.Contains(t, err.Error(), "field="+tt.field)
		})
	}
}

func TestEncodeDecodeKeepsPrecision(t *testing.T) {
	r := sample("p", 40.75805123456789, -73.98554987654321)
	kv := encodeFields(r)
	m := map[string]string{}
	for i := 0; i < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1].(string)
	}
	rec, err := decodeFields(0, m)
	require.NoError(t, err)
	assert.True(t, r.Equal(rec.Region))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i, n := range []string{"a", "b", "c"} {
		idx, err := m.Persist(ctx, sample(n, float64(i), 0))
		require.NoError(t, err)
		assert.Equal(t, int64(i), idx)
	}
	rs, err := m.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, "a", rs[0].Name)
	assert.Equal(t, "c", rs[2].Name)

	recs, err := m.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	require.NoError(t, m.Delete(ctx, 1))
	assert.ErrorIs(t, m.Delete(ctx, 1), ErrNotFound)
	_, err = m.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	n, _ := m.Count(ctx)
	assert.Equal(t, int64(2), n)

	// 删除后索引不复用
	idx, err := m.Persist(ctx, sample("d", 5, 5))
	require.NoError(t, err)
	assert.Equal(t, int64(3), idx)
}
