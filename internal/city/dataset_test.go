package city_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

type fixedProvider struct{}

func (fixedProvider) Name() string { return "fixed" }

func (fixedProvider) FetchPollution(_ context.Context, _ geo.Coordinate) (*airquality.PollutantReading, error) {
	return &airquality.PollutantReading{PM25: airquality.Float(20), CapturedAt: time.Unix(0, 0)}, nil
}

func TestLoadEmbedded(t *testing.T) {
	ds, err := city.LoadEmbedded()
	require.NoError(t, err)

	assert.Greater(t, len(ds.Records), 100)
	assert.Equal(t, "delhi", ds.Aliases.Canonical("  New   Delhi "))
	assert.Equal(t, "mumbai", ds.Aliases.Canonical("Bombay"))
	assert.Equal(t, "new york", ds.Aliases.Canonical("NYC"))
	assert.Equal(t, "pune", ds.Aliases.Canonical("Pune"))

	for _, key := range []string{"delhi", "mumbai", "bangalore", "gurgaon", "london", "sydney"} {
		locs, ok := ds.Locations.Curated(key)
		assert.True(t, ok, key)
		assert.NotEmpty(t, locs, key)
	}

	records, err := ds.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, len(ds.Records))
}

func TestParseDataset_InvalidCoordinate(t *testing.T) {
	gaz := []byte(`
cities:
  - name: "Nowhere"
    lat: 95
    lng: 10
`)
	_, err := city.ParseDataset(gaz, []byte(`locations: {}`))
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
}

func TestParseDataset_MissingName(t *testing.T) {
	gaz := []byte(`
cities:
  - lat: 10
    lng: 10
`)
	_, err := city.ParseDataset(gaz, []byte(`locations: {}`))
	assert.Error(t, err)
}

func TestLoadGazetteer_Empty(t *testing.T) {
	ds := &city.Dataset{}
	_, err := city.LoadGazetteer(context.Background(), ds)
	assert.ErrorIs(t, err, city.ErrNoRecords)
}

func TestEmbeddedGazetteer_Search(t *testing.T) {
	ds, err := city.LoadEmbedded()
	require.NoError(t, err)

	r := city.NewResolver(city.ResolverConfig{
		Gazetteer: city.NewGazetteer(ds.Records),
		Logger:    zerolog.New(io.Discard),
	})

	m, err := r.Resolve(context.Background(), "new delhi")
	require.NoError(t, err)
	assert.Equal(t, "Delhi", m.Name)

	matches, err := r.Search(context.Background(), "mumbai", 0)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Mumbai", matches[0].Name)
}

func TestDelhiCuratedNearbyLocations(t *testing.T) {
	ds, err := city.LoadEmbedded()
	require.NoError(t, err)

	svc := airquality.NewService(airquality.ServiceConfig{
		Provider:  fixedProvider{},
		Aliases:   ds.Aliases,
		Directory: ds.Locations,
		Logger:    zerolog.New(io.Discard),
	})

	want := []airquality.Location{
		{ID: "rajouri-garden", Name: "Rajouri Garden", Coordinate: geo.Coordinate{Lat: 28.6492, Lng: 77.1207}},
		{ID: "punjabi-bagh", Name: "Punjabi Bagh", Coordinate: geo.Coordinate{Lat: 28.6741, Lng: 77.1313}},
		{ID: "anand-vihar", Name: "Anand Vihar", Coordinate: geo.Coordinate{Lat: 28.6462, Lng: 77.3159}},
		{ID: "connaught-place", Name: "Connaught Place", Coordinate: geo.Coordinate{Lat: 28.6315, Lng: 77.2167}},
		{ID: "dwarka", Name: "Dwarka", Coordinate: geo.Coordinate{Lat: 28.5921, Lng: 77.046}},
		{ID: "rk-puram", Name: "R.K. Puram", Coordinate: geo.Coordinate{Lat: 28.568, Lng: 77.1765}},
		{ID: "dilshad-garden", Name: "Dilshad Garden", Coordinate: geo.Coordinate{Lat: 28.6845, Lng: 77.3149}},
		{ID: "mandir-marg", Name: "Mandir Marg", Coordinate: geo.Coordinate{Lat: 28.6364, Lng: 77.2014}},
		{ID: "igi-airport", Name: "IGI Airport", Coordinate: geo.Coordinate{Lat: 28.5562, Lng: 77.0999}},
	}

	center := geo.Coordinate{Lat: 28.7041, Lng: 77.1025}
	for _, name := range []string{"Delhi", "New Delhi", " delhi "} {
		got, err := svc.NearbyLocations(context.Background(), name, center)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	result, err := svc.CityAirQuality(context.Background(), airquality.CityRequest{City: "Delhi", Center: center})
	require.NoError(t, err)
	assert.Len(t, result.Nearby, 9)
	assert.Zero(t, result.Degraded)
	assert.Equal(t, "delhi", result.Key)
}
