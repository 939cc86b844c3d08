package geocode_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/internal/geocode"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

func intPtr(v int) *int { return &v }

func testGazetteer() *city.Gazetteer {
	return city.NewGazetteer([]city.Record{
		{Name: "Delhi", Aliases: []string{"New Delhi"}, Coordinate: geo.Coordinate{Lat: 28.7041, Lng: 77.1025}, Population: intPtr(11_034_555)},
		{Name: "Ajmer", Coordinate: geo.Coordinate{Lat: 26.4499, Lng: 74.6399}, Population: intPtr(542_321)},
	})
}

type fakeMaps struct {
	results []maps.GeocodingResult
	err     error
	req     *maps.GeocodingRequest
}

func (f *fakeMaps) ReverseGeocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	f.req = r
	return f.results, f.err
}

func locality(name string) []maps.GeocodingResult {
	return []maps.GeocodingResult{{
		AddressComponents: []maps.AddressComponent{
			{LongName: "India", Types: []string{"country", "political"}},
			{LongName: name, Types: []string{"locality", "political"}},
		},
	}}
}

func TestGazetteer_ReverseGeocode(t *testing.T) {
	g := geocode.NewGazetteer(testGazetteer(), 0)

	place, err := g.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 28.65, Lng: 77.2})
	require.NoError(t, err)
	assert.Equal(t, "Delhi", place.Name)
	require.NotNil(t, place.Population)
	assert.Equal(t, 11_034_555, *place.Population)

	_, err = g.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 19.07, Lng: 72.87})
	assert.ErrorIs(t, err, geocode.ErrNoPlace)

	_, err = g.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
}

func TestGoogle_ReverseGeocode(t *testing.T) {
	fake := &fakeMaps{results: locality("New Delhi")}
	g, err := geocode.NewGoogle(geocode.GoogleConfig{
		Client:    fake,
		Gazetteer: testGazetteer(),
		Logger:    zerolog.New(io.Discard),
	})
	require.NoError(t, err)

	place, err := g.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 28.6139, Lng: 77.209})
	require.NoError(t, err)
	assert.Equal(t, "New Delhi", place.Name)
	require.NotNil(t, place.Population)
	assert.Equal(t, 11_034_555, *place.Population)

	require.NotNil(t, fake.req.LatLng)
	assert.Equal(t, 28.6139, fake.req.LatLng.Lat)
}

func TestGoogle_NoLocality(t *testing.T) {
	g, err := geocode.NewGoogle(geocode.GoogleConfig{Client: &fakeMaps{}})
	require.NoError(t, err)

	_, err = g.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 0, Lng: 0})
	assert.ErrorIs(t, err, geocode.ErrNoPlace)
}

func TestNewGoogle_RequiresKey(t *testing.T) {
	_, err := geocode.NewGoogle(geocode.GoogleConfig{})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	failing, err := geocode.NewGoogle(geocode.GoogleConfig{Client: &fakeMaps{err: errors.New("quota exceeded")}})
	require.NoError(t, err)

	chain := geocode.Chain{failing, geocode.NewGazetteer(testGazetteer(), 0)}

	place, err := chain.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 26.45, Lng: 74.64})
	require.NoError(t, err)
	assert.Equal(t, "Ajmer", place.Name)

	_, err = chain.ReverseGeocode(context.Background(), geo.Coordinate{Lat: -33.86, Lng: 151.2})
	require.Error(t, err)
	assert.ErrorIs(t, err, geocode.ErrNoPlace)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = geocode.Chain{}.ReverseGeocode(context.Background(), geo.Coordinate{})
	assert.ErrorIs(t, err, geocode.ErrNoPlace)
}

var _ airquality.ReverseGeocoder = geocode.Chain{}
