// Package geocode resolves coordinates to named places for nearby-location
// scaling. Geocoding is enrichment only; callers ignore its failures.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// DefaultRadiusMeters bounds how far the nearest gazetteer city may be.
const DefaultRadiusMeters = 30_000

// ErrNoPlace is returned when no place is known near a coordinate.
var ErrNoPlace = errors.New("no place near coordinate")

// Gazetteer finds the nearest gazetteer city, which carries a population.
type Gazetteer struct {
	gazetteer *city.Gazetteer
	radius    float64
}

// NewGazetteer creates a gazetteer-backed geocoder. A radius of zero uses
// DefaultRadiusMeters.
func NewGazetteer(g *city.Gazetteer, radiusMeters float64) *Gazetteer {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Gazetteer{gazetteer: g, radius: radiusMeters}
}

// ReverseGeocode returns the nearest city within the radius.
func (g *Gazetteer) ReverseGeocode(_ context.Context, c geo.Coordinate) (*airquality.Place, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rec, ok := g.gazetteer.Nearest(c, g.radius)
	if !ok {
		return nil, ErrNoPlace
	}
	return &airquality.Place{Name: rec.Name, Population: rec.Population}, nil
}

// MapsAPI is the subset of the Google Maps client used here.
type MapsAPI interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleConfig holds configuration for the Google Maps geocoder.
type GoogleConfig struct {
	// APIKey is used when Client is nil.
	APIKey string

	// Client overrides the Google Maps client.
	Client MapsAPI

	// Gazetteer supplies populations for resolved locality names. Optional.
	Gazetteer *city.Gazetteer

	Logger zerolog.Logger
}

// Google reverse geocodes through the Google Maps Geocoding API.
type Google struct {
	client    MapsAPI
	gazetteer *city.Gazetteer
	logger    zerolog.Logger
}

// NewGoogle creates a Google Maps geocoder.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	client := cfg.Client
	if client == nil {
		if cfg.APIKey == "" {
			return nil, errors.New("google maps api key is required")
		}
		mc, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("create maps client: %w", err)
		}
		client = mc
	}
	return &Google{client: client, gazetteer: cfg.Gazetteer, logger: cfg.Logger}, nil
}

// ReverseGeocode returns the locality containing c.
func (g *Google) ReverseGeocode(ctx context.Context, c geo.Coordinate) (*airquality.Place, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:     &maps.LatLng{Lat: c.Lat, Lng: c.Lng},
		ResultType: []string{"locality"},
	})
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}

	name := localityName(results)
	if name == "" {
		return nil, ErrNoPlace
	}

	place := &airquality.Place{Name: name}
	if g.gazetteer != nil {
		place.Population = populationFor(g.gazetteer, name, c)
	}

	g.logger.Debug().Str("locality", name).Stringer("coordinate", c).Msg("reverse geocoded")

	return place, nil
}

func localityName(results []maps.GeocodingResult) string {
	for _, r := range results {
		for _, comp := range r.AddressComponents {
			for _, t := range comp.Types {
				if t == "locality" {
					return comp.LongName
				}
			}
		}
	}
	return ""
}

// populationFor matches a locality to a nearby gazetteer record by name or
// alias.
func populationFor(g *city.Gazetteer, name string, c geo.Coordinate) *int {
	rec, ok := g.Nearest(c, DefaultRadiusMeters)
	if !ok {
		return nil
	}
	if strings.EqualFold(rec.Name, name) {
		return rec.Population
	}
	for _, a := range rec.Aliases {
		if strings.EqualFold(a, name) {
			return rec.Population
		}
	}
	return nil
}

// Chain tries each geocoder in order and returns the first place found.
type Chain []airquality.ReverseGeocoder

// ReverseGeocode implements airquality.ReverseGeocoder.
func (ch Chain) ReverseGeocode(ctx context.Context, c geo.Coordinate) (*airquality.Place, error) {
	var errs []error
	for _, g := range ch {
		place, err := g.ReverseGeocode(ctx, c)
		if err == nil && place != nil {
			return place, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ErrNoPlace
	}
	return nil, errors.Join(errs...)
}
