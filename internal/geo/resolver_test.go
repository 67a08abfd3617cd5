package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocalNetworkShortCircuit(t *testing.T) {
	r := NewHTTPResolver("http://unreachable.invalid", nil)
	for _, ip := range []string{"127.0.0.1", "10.0.0.5", "192.168.1.20", "::1", "0.0.0.0"} {
		loc, err := r.Resolve(context.Background(), ip)
		require.NoError(t, err, ip)
		require.NotNil(t, loc, ip)
		assert.Equal(t, "Local Network", loc.Pretty, ip)
	}
}

func TestResolvePublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success", "city": "Mountain View", "country": "United States",
			"lat": 37.386, "lon": -122.084,
		})
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, nil)
	loc, err := r.Resolve(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "Mountain View", loc.City)
	assert.Equal(t, "Mountain View, United States", loc.Pretty)
	assert.InDelta(t, 37.386, loc.Lat, 0.001)
}

func TestResolveProviderFailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, nil)
	loc, err := r.Resolve(context.Background(), "8.8.8.8")
	assert.NoError(t, err)
	assert.Nil(t, loc)
}

func TestResolveProviderFailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "fail"})
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, nil)
	loc, err := r.Resolve(context.Background(), "203.0.113.9")
	assert.NoError(t, err)
	assert.Nil(t, loc)
}

func TestNoopResolver(t *testing.T) {
	loc, err := NoopResolver{}.Resolve(context.Background(), "8.8.8.8")
	assert.NoError(t, err)
	assert.Nil(t, loc)
}
