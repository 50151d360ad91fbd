package geocode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestGeocode_ParsesFirstDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Seongsu", r.URL.Query().Get("query"))
		assert.Equal(t, "KakaoAK test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documents":[{"y":"37.544579","x":"127.055961"},{"y":"0","x":"0"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second, time.Minute, testLogger())
	coord, err := c.Geocode(context.Background(), "Seongsu")
	require.NoError(t, err)
	assert.InDelta(t, 37.544579, coord.Latitude, 1e-9)
	assert.InDelta(t, 127.055961, coord.Longitude, 1e-9)
}

func TestGeocode_NoDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"documents":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second, time.Minute, testLogger())
	_, err := c.Geocode(context.Background(), "nowhere-at-all")

	var geocodeErr *types.GeocodeFailedError
	require.True(t, errors.As(err, &geocodeErr))
	assert.Equal(t, "nowhere-at-all", geocodeErr.Region)
	assert.Contains(t, err.Error(), "nowhere-at-all")
}

func TestGeocode_CachesByRegion(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"documents":[{"y":"37.5","x":"127.0"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second, time.Minute, testLogger())
	for i := 0; i < 3; i++ {
		_, err := c.Geocode(context.Background(), "Hongdae")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second, time.Minute, testLogger())
	_, err := c.Geocode(context.Background(), "Seongsu")
	require.Error(t, err)

	var geocodeErr *types.GeocodeFailedError
	assert.False(t, errors.As(err, &geocodeErr), "server faults are not geocode misses")
}

func TestGeocode_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"documents":[{"y":"37.5","x":"127.0"}]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "test-key", time.Second, time.Minute, testLogger())
	_, err := c.Geocode(ctx, "Seongsu")
	require.Error(t, err)
}
