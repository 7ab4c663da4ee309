package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAMap(t *testing.T, body string, check func(r *http.Request)) *AMap {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	a := NewAMap("test-key", srv.Client())
	a.BaseURL = srv.URL
	return a
}

func TestAMap_Resolve(t *testing.T) {
	body := `{"status":"1","info":"OK","infocode":"10000","regeocode":{"formatted_address":"北京市东城区东华门街道天安门","addressComponent":{"province":"北京市","city":[],"district":"东城区"}}}`
	a := newTestAMap(t, body, func(r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "116.397477,39.908692", r.URL.Query().Get("location"))
	})
	name, err := a.Resolve(context.Background(), 39.908692, 116.397477)
	require.NoError(t, err)
	assert.Equal(t, "北京市东城区东华门街道天安门", name)
}

func TestAMap_FallsBackToComponents(t *testing.T) {
	body := `{"status":"1","info":"OK","infocode":"10000","regeocode":{"formatted_address":[],"addressComponent":{"province":"浙江省","city":"杭州市","district":"西湖区"}}}`
	a := newTestAMap(t, body, nil)
	name, err := a.Resolve(context.Background(), 30.25, 120.13)
	require.NoError(t, err)
	assert.Equal(t, "浙江省杭州市西湖区", name)
}

func TestAMap_NoAddress(t *testing.T) {
	body := `{"status":"1","info":"OK","infocode":"10000","regeocode":{"formatted_address":[],"addressComponent":{"province":[],"city":[],"district":[]}}}`
	a := newTestAMap(t, body, nil)
	_, err := a.Resolve(context.Background(), 0, -150)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestAMap_Errors(t *testing.T) {
	a := newTestAMap(t, `{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`, nil)
	_, err := a.Resolve(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10001")

	_, err = NewAMap("", nil).Resolve(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrMissingKey)

	bad := newTestAMap(t, `not json`, nil)
	_, err = bad.Resolve(context.Background(), 1, 1)
	assert.Error(t, err)
}
