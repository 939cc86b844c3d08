package openweathermap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/airquality/openweathermap"
	"github.com/varunkainth/airpollutionmap/internal/provider/resilience"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

func newTestClient(url string) *openweathermap.Client {
	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 0
	cfg.InitialInterval = time.Millisecond
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "****",
		BaseURL:    url,
		HTTPClient: resilience.NewClient(cfg),
	})
}

func TestClient_FetchPollution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/air_pollution", r.URL.Path)
		assert.Equal(t, "28.704100", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.102500", r.URL.Query().Get("lon"))
		assert.Equal(t, "****", r.URL.Query().Get("appid"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"coord": {"lat": 28.7041, "lon": 77.1025},
			"list": [{
				"main": {"aqi": 4},
				"components": {"co": 1201.6, "no2": 40.1, "o3": 0, "pm2_5": 85.3, "pm10": 120.4},
				"dt": 1700000000
			}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	reading, err := client.FetchPollution(context.Background(), geo.Coordinate{Lat: 28.7041, Lng: 77.1025})
	require.NoError(t, err)
	require.NotNil(t, reading)

	assert.Equal(t, 4, reading.CategoryIndex)
	require.NotNil(t, reading.PM25)
	assert.Equal(t, 85.3, *reading.PM25)
	require.NotNil(t, reading.O3)
	assert.Equal(t, 0.0, *reading.O3)
	assert.Nil(t, reading.NO, "missing component stays absent")
	assert.Nil(t, reading.SO2)
	assert.Nil(t, reading.NH3)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), reading.CapturedAt)
	assert.Equal(t, "openweathermap", client.Name())
}

func TestClient_FetchPollution_EmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"list": []}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchPollution(context.Background(), geo.Coordinate{Lat: 1, Lng: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, airquality.ErrNoReading)
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)
}

func TestClient_FetchPollution_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchPollution(context.Background(), geo.Coordinate{Lat: 1, Lng: 1})
	require.Error(t, err)

	var netErr *airquality.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "openweathermap.FetchPollution", netErr.Op)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_FetchPollution_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"list": []}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).FetchPollution(ctx, geo.Coordinate{Lat: 1, Lng: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, airquality.ErrCancelled)
	assert.NotErrorIs(t, err, airquality.ErrProviderUnavailable)
}

func TestClient_SearchCities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/direct", r.URL.Path)
		assert.Equal(t, "Pune", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		_, _ = w.Write([]byte(`[
			{"name": "Pune", "lat": 18.5214, "lon": 73.8545, "country": "IN", "state": "Maharashtra"},
			{"name": "Pune", "lat": 18.52, "lon": 73.85, "country": "IN"}
		]`))
	}))
	defer server.Close()

	cities, err := newTestClient(server.URL).SearchCities(context.Background(), "Pune", 10)
	require.NoError(t, err)
	require.Len(t, cities, 2)

	assert.Equal(t, "Pune", cities[0].Name)
	assert.Equal(t, 18.5214, cities[0].Lat)
	assert.Equal(t, 73.8545, cities[0].Lon)
	assert.Equal(t, "Maharashtra", cities[0].State)
	assert.Empty(t, cities[1].State)
}
