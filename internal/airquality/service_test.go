package airquality_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// mockProvider is a test double for the pollution provider.
type mockProvider struct {
	mu         sync.Mutex
	failAt     map[geo.Coordinate]error
	fetchCount atomic.Int32
	delay      time.Duration
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) FetchPollution(ctx context.Context, c geo.Coordinate) (*airquality.PollutantReading, error) {
	m.fetchCount.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	err := m.failAt[c]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &airquality.PollutantReading{
		PM25:       airquality.Float(c.Lat),
		CapturedAt: time.Unix(1700000000, 0),
	}, nil
}

type mapAliases map[string]string

func (a mapAliases) Canonical(name string) string {
	if v, ok := a[name]; ok {
		return v
	}
	return name
}

type mapDirectory map[string][]airquality.Location

func (d mapDirectory) Curated(key string) ([]airquality.Location, bool) {
	locs, ok := d[key]
	return locs, ok
}

type stubGeocoder struct {
	place *airquality.Place
	err   error
	calls atomic.Int32
}

func (g *stubGeocoder) ReverseGeocode(_ context.Context, _ geo.Coordinate) (*airquality.Place, error) {
	g.calls.Add(1)
	return g.place, g.err
}

func newTestService(provider airquality.Provider, opts ...func(*airquality.ServiceConfig)) *airquality.Service {
	cfg := airquality.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.New(io.Discard),
		Aliases:  mapAliases{"bombay": "mumbai", "new delhi": "delhi"},
		Directory: mapDirectory{
			"delhi": {
				{ID: "rajouri-garden", Name: "Rajouri Garden", Coordinate: geo.Coordinate{Lat: 28.6492, Lng: 77.1207}},
				{ID: "dwarka", Name: "Dwarka", Coordinate: geo.Coordinate{Lat: 28.5921, Lng: 77.0460}},
			},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return airquality.NewService(cfg)
}

func TestService_NearbyLocations_Curated(t *testing.T) {
	svc := newTestService(&mockProvider{})

	locs, err := svc.NearbyLocations(context.Background(), "New Delhi", geo.Coordinate{Lat: 28.7041, Lng: 77.1025})
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "rajouri-garden", locs[0].ID)
}

func TestService_NearbyLocations_Compass(t *testing.T) {
	svc := newTestService(&mockProvider{})
	center := geo.Coordinate{Lat: 26.9124, Lng: 75.7873}

	locs, err := svc.NearbyLocations(context.Background(), "Jaipur City", center)
	require.NoError(t, err)
	require.Len(t, locs, 9)

	assert.Equal(t, "jaipur-city-north", locs[0].ID)
	assert.Equal(t, "Jaipur City - North", locs[0].Name)
	assert.InDelta(t, center.Lat+0.025, locs[0].Coordinate.Lat, 1e-9)
	assert.InDelta(t, center.Lng, locs[0].Coordinate.Lng, 1e-9)

	assert.Equal(t, "jaipur-city-northeast", locs[1].ID)
	assert.InDelta(t, center.Lat+0.02, locs[1].Coordinate.Lat, 1e-9)
	assert.InDelta(t, center.Lng+0.02, locs[1].Coordinate.Lng, 1e-9)

	assert.Equal(t, "jaipur-city-southwest", locs[5].ID)
	assert.InDelta(t, center.Lat-0.02, locs[5].Coordinate.Lat, 1e-9)

	assert.Equal(t, "jaipur-city-center", locs[8].ID)
	assert.Equal(t, center, locs[8].Coordinate)
}

func TestService_NearbyLocations_HighPopulationScales(t *testing.T) {
	pop := 3_000_000
	geocoder := &stubGeocoder{place: &airquality.Place{Name: "Jaipur", Population: &pop}}
	svc := newTestService(&mockProvider{}, func(cfg *airquality.ServiceConfig) {
		cfg.Geocoder = geocoder
	})
	center := geo.Coordinate{Lat: 26.9124, Lng: 75.7873}

	locs, err := svc.NearbyLocations(context.Background(), "Jaipur", center)
	require.NoError(t, err)
	assert.InDelta(t, center.Lat+0.05, locs[0].Coordinate.Lat, 1e-9)
	assert.InDelta(t, center.Lng+0.04, locs[1].Coordinate.Lng, 1e-9)
	assert.Equal(t, int32(1), geocoder.calls.Load())
}

func TestService_NearbyLocations_GeocoderFailureIgnored(t *testing.T) {
	svc := newTestService(&mockProvider{}, func(cfg *airquality.ServiceConfig) {
		cfg.Geocoder = &stubGeocoder{err: errors.New("quota exceeded")}
	})
	center := geo.Coordinate{Lat: 26.9124, Lng: 75.7873}

	locs, err := svc.NearbyLocations(context.Background(), "Jaipur", center)
	require.NoError(t, err)
	require.Len(t, locs, 9)
	assert.InDelta(t, center.Lat+0.025, locs[0].Coordinate.Lat, 1e-9)
}

func TestService_NearbyLocations_InvalidCenter(t *testing.T) {
	svc := newTestService(&mockProvider{})
	_, err := svc.NearbyLocations(context.Background(), "Nowhere", geo.Coordinate{Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
}

func TestService_FetchLocations_PartialFailure(t *testing.T) {
	locs := []airquality.Location{
		{ID: "a", Name: "A", Coordinate: geo.Coordinate{Lat: 10, Lng: 10}},
		{ID: "b", Name: "B", Coordinate: geo.Coordinate{Lat: 11, Lng: 10}},
		{ID: "c", Name: "C", Coordinate: geo.Coordinate{Lat: 12, Lng: 10}},
		{ID: "d", Name: "D", Coordinate: geo.Coordinate{Lat: 13, Lng: 10}},
		{ID: "e", Name: "E", Coordinate: geo.Coordinate{Lat: 14, Lng: 10}},
	}
	provider := &mockProvider{failAt: map[geo.Coordinate]error{
		locs[2].Coordinate: errors.New("upstream 502"),
	}}
	svc := newTestService(provider)

	points := svc.FetchLocations(context.Background(), locs)
	require.Len(t, points, 5)

	ok := 0
	for i, p := range points {
		assert.Equal(t, locs[i].ID, p.ID)
		if p.Reading != nil {
			ok++
			assert.False(t, p.Degraded)
			continue
		}
		assert.Equal(t, "c", p.ID)
		assert.True(t, p.Degraded)
		assert.Contains(t, p.Error, "upstream 502")
	}
	assert.Equal(t, 4, ok)
}

func TestService_FetchReading_UsesCache(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider)
	c := geo.Coordinate{Lat: 19.07601, Lng: 72.87771}

	_, err := svc.FetchReading(context.Background(), c)
	require.NoError(t, err)
	_, err = svc.FetchReading(context.Background(), geo.Coordinate{Lat: 19.07598, Lng: 72.87769})
	require.NoError(t, err)

	assert.Equal(t, int32(1), provider.fetchCount.Load())
}

func TestService_FetchReading_Cancelled(t *testing.T) {
	provider := &mockProvider{delay: time.Second}
	svc := newTestService(provider)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.FetchReading(ctx, geo.Coordinate{Lat: 1, Lng: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, airquality.ErrCancelled)
	assert.Zero(t, svc.Cache().Len())
}

func TestService_CityAirQuality_PrimaryFailureIsFatal(t *testing.T) {
	center := geo.Coordinate{Lat: 28.7041, Lng: 77.1025}
	provider := &mockProvider{failAt: map[geo.Coordinate]error{center: errors.New("connection refused")}}
	svc := newTestService(provider)

	_, err := svc.CityAirQuality(context.Background(), airquality.CityRequest{City: "Delhi", Center: center})
	require.Error(t, err)

	var netErr *airquality.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)
}

func TestService_CityAirQuality_MergesSynthetic(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider)
	store := airquality.NewPointStore("")
	box := geo.BoundingBox{
		NorthEast: geo.Coordinate{Lat: 28.9, Lng: 77.4},
		SouthWest: geo.Coordinate{Lat: 28.4, Lng: 76.8},
	}

	result, err := svc.CityAirQuality(context.Background(), airquality.CityRequest{
		City:     "New Delhi",
		Center:   geo.Coordinate{Lat: 28.7041, Lng: 77.1025},
		Viewport: &box,
		Store:    store,
	})
	require.NoError(t, err)

	assert.Equal(t, "delhi", result.Key)
	assert.Equal(t, "delhi", store.Scope())
	require.Len(t, result.Nearby, 2)
	assert.NotEmpty(t, result.Synthetic)
	assert.Len(t, result.Points, len(result.Nearby)+len(result.Synthetic))
	assert.Equal(t, "rajouri-garden", result.Points[0].ID)
	assert.Zero(t, result.Degraded)
	assert.Equal(t, airquality.ComputeAQI(result.Reading), result.AQI)
}

func TestService_CityAirQuality_CityChangeResetsStore(t *testing.T) {
	svc := newTestService(&mockProvider{})
	store := airquality.NewPointStore("delhi")
	store.Add(&airquality.MonitoringPoint{ID: "stale", Coordinate: geo.Coordinate{Lat: 19.1, Lng: 72.9}})

	box := geo.BoundingBox{
		NorthEast: geo.Coordinate{Lat: 19.3, Lng: 73.1},
		SouthWest: geo.Coordinate{Lat: 18.9, Lng: 72.7},
	}
	_, err := svc.CityAirQuality(context.Background(), airquality.CityRequest{
		City:     "Bombay",
		Center:   geo.Coordinate{Lat: 19.076, Lng: 72.8777},
		Viewport: &box,
		Store:    store,
	})
	require.NoError(t, err)

	assert.Equal(t, "mumbai", store.Scope())
	_, ok := store.Get("stale")
	assert.False(t, ok)
}

func TestMergePoints(t *testing.T) {
	a := &airquality.MonitoringPoint{ID: "a"}
	b := &airquality.MonitoringPoint{ID: "b"}
	dup := &airquality.MonitoringPoint{ID: "a", Name: "duplicate"}

	merged := airquality.MergePoints([]*airquality.MonitoringPoint{a}, []*airquality.MonitoringPoint{dup, b})
	require.Len(t, merged, 2)
	assert.Same(t, a, merged[0])
	assert.Same(t, b, merged[1])
}
