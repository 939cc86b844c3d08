package airquality

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

const tracerName = "github.com/varunkainth/airpollutionmap/internal/airquality"

// DefaultFetchConcurrency bounds parallel fetches within one batch.
const DefaultFetchConcurrency = 8

// Provider defines the interface for pollution data providers.
type Provider interface {
	// Name identifies the provider in logs and health reports.
	Name() string

	// FetchPollution returns the current reading at c. Components the
	// provider does not report are left nil.
	FetchPollution(ctx context.Context, c geo.Coordinate) (*PollutantReading, error)
}

// CityNormalizer maps informal or historic city names to canonical keys.
type CityNormalizer interface {
	Canonical(name string) string
}

// LocationDirectory holds curated named locations per canonical city key.
type LocationDirectory interface {
	Curated(key string) ([]Location, bool)
}

// Place is the result of a reverse geocode.
type Place struct {
	Name       string `json:"name"`
	Population *int   `json:"population,omitempty"`
}

// ReverseGeocoder resolves a coordinate to a place. It is optional
// enrichment; failures never fail a request.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, c geo.Coordinate) (*Place, error)
}

// ServiceConfig holds configuration for the aggregation service.
type ServiceConfig struct {
	// Provider is the pollution data provider.
	Provider Provider

	// Cache deduplicates and caches provider reads. A default cache is
	// created when nil.
	Cache *GeoDataCache

	// Sampler fills viewports with synthetic points. A default generator is
	// created when nil.
	Sampler *SpatialSampleGenerator

	Aliases   CityNormalizer
	Directory LocationDirectory

	// Geocoder is optional.
	Geocoder ReverseGeocoder

	Compass CompassConfig

	// FetchConcurrency bounds parallel nearby fetches (default: 8).
	FetchConcurrency int

	Logger zerolog.Logger
	Now    func() time.Time
}

// Service orchestrates city resolution, nearby lookup and parallel fetches.
type Service struct {
	provider    Provider
	cache       *GeoDataCache
	sampler     *SpatialSampleGenerator
	aliases     CityNormalizer
	directory   LocationDirectory
	geocoder    ReverseGeocoder
	compass     CompassConfig
	concurrency int
	logger      zerolog.Logger
	now         func() time.Time
	tracer      trace.Tracer
}

// NewService creates a new aggregation service.
func NewService(cfg ServiceConfig) *Service {
	cache := cfg.Cache
	if cache == nil {
		cache = NewGeoDataCache(CacheConfig{Logger: cfg.Logger})
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = NewSpatialSampleGenerator(SamplerConfig{Now: cfg.Now})
	}

	concurrency := cfg.FetchConcurrency
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider:    cfg.Provider,
		cache:       cache,
		sampler:     sampler,
		aliases:     cfg.Aliases,
		directory:   cfg.Directory,
		geocoder:    cfg.Geocoder,
		compass:     cfg.Compass.withDefaults(),
		concurrency: concurrency,
		logger:      cfg.Logger,
		now:         now,
		tracer:      otel.Tracer(tracerName),
	}
}

// Cache returns the service's reading cache.
func (s *Service) Cache() *GeoDataCache {
	return s.cache
}

// CanonicalKey normalizes a city name through the alias table.
func (s *Service) CanonicalKey(city string) string {
	key := strings.ToLower(strings.TrimSpace(city))
	if s.aliases != nil {
		key = s.aliases.Canonical(key)
	}
	return key
}

// FetchReading returns the reading at c through the cache.
func (s *Service) FetchReading(ctx context.Context, c geo.Coordinate) (*PollutantReading, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return s.cache.GetOrFetch(ctx, KeyFor(c), func(ctx context.Context) (*PollutantReading, error) {
		return s.provider.FetchPollution(ctx, c)
	})
}

// NearbyLocations returns the curated locations for city if there are any,
// otherwise eight compass points plus the center. Offsets are scaled for
// high-population cities when a geocoder is configured.
func (s *Service) NearbyLocations(ctx context.Context, city string, center geo.Coordinate) ([]Location, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	key := s.CanonicalKey(city)
	if s.directory != nil {
		if curated, ok := s.directory.Curated(key); ok {
			out := make([]Location, len(curated))
			copy(out, curated)
			return out, nil
		}
	}

	name := strings.TrimSpace(city)
	scale := 1.0
	if s.geocoder != nil {
		place, err := s.geocoder.ReverseGeocode(ctx, center)
		switch {
		case err != nil:
			s.logger.Debug().Err(err).Str("city", name).Msg("reverse geocode failed, using default offsets")
		case place != nil:
			scale = s.compass.ScaleFor(place.Population)
			if name == "" {
				name = place.Name
			}
		}
	}
	if name == "" {
		name = "Location"
	}

	return CompassLocations(name, center, s.compass, scale), nil
}

// FetchLocations fetches every location concurrently. Each fetch settles on
// its own: a failure yields a degraded point with a nil reading and never
// cancels the others. Points are returned in input order.
func (s *Service) FetchLocations(ctx context.Context, locations []Location) []*MonitoringPoint {
	points := make([]*MonitoringPoint, len(locations))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i, loc := range locations {
		g.Go(func() error {
			point := &MonitoringPoint{
				ID:         loc.ID,
				Name:       loc.Name,
				Coordinate: loc.Coordinate,
			}

			reading, err := s.FetchReading(ctx, loc.Coordinate)
			if err != nil {
				point.Degraded = true
				point.Error = err.Error()
				point.CapturedAt = s.now()
				s.logFetchFailure(err, loc)
			} else {
				point.Reading = reading
				point.CapturedAt = reading.CapturedAt
			}

			points[i] = point
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return points
}

func (s *Service) logFetchFailure(err error, loc Location) {
	event := s.logger.Warn()
	if errors.Is(err, ErrCancelled) {
		event = s.logger.Debug()
	}
	event.Err(err).
		Str("location_id", loc.ID).
		Str("location", loc.Name).
		Msg("nearby fetch failed, returning degraded point")
}

// CityRequest describes one aggregation request.
type CityRequest struct {
	City   string
	Center geo.Coordinate

	// Viewport and Store are optional. When both are set synthetic points
	// covering the viewport are merged into the result.
	Viewport *geo.BoundingBox
	Store    *PointStore
}

// CityAirQuality is the aggregated result for one city.
type CityAirQuality struct {
	City      string             `json:"city"`
	Key       string             `json:"key"`
	Center    geo.Coordinate     `json:"center"`
	Reading   *PollutantReading  `json:"reading"`
	AQI       AQIValue           `json:"aqi"`
	Nearby    []*MonitoringPoint `json:"nearby"`
	Synthetic []*MonitoringPoint `json:"synthetic"`
	Points    []*MonitoringPoint `json:"points"`
	Degraded  int                `json:"degraded"`
}

// CityAirQuality resolves the city, fetches the primary reading, fetches
// every nearby location and merges the result with synthetic viewport
// points. Only a failed primary fetch fails the request.
func (s *Service) CityAirQuality(ctx context.Context, req CityRequest) (*CityAirQuality, error) {
	key := s.CanonicalKey(req.City)

	ctx, span := s.tracer.Start(ctx, "airquality.CityAirQuality",
		trace.WithAttributes(
			attribute.String("city.key", key),
			attribute.Float64("city.lat", req.Center.Lat),
			attribute.Float64("city.lng", req.Center.Lng),
		),
	)
	defer span.End()

	primary, err := s.FetchReading(ctx, req.Center)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "primary fetch failed")
		return nil, err
	}

	locations, err := s.NearbyLocations(ctx, req.City, req.Center)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby lookup failed")
		return nil, err
	}

	nearby := s.FetchLocations(ctx, locations)

	var synthetic []*MonitoringPoint
	if req.Viewport != nil && req.Store != nil {
		if req.Store.Scope() != key {
			req.Store.Reset(key)
		}
		synthetic, err = s.sampler.Generate(req.Store, *req.Viewport)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	result := &CityAirQuality{
		City:      strings.TrimSpace(req.City),
		Key:       key,
		Center:    req.Center,
		Reading:   primary,
		AQI:       ComputeAQI(primary),
		Nearby:    nearby,
		Synthetic: synthetic,
		Points:    MergePoints(nearby, synthetic),
	}
	for _, p := range nearby {
		if p.Degraded {
			result.Degraded++
		}
	}

	span.SetAttributes(
		attribute.Int("points.nearby", len(nearby)),
		attribute.Int("points.synthetic", len(synthetic)),
		attribute.Int("points.degraded", result.Degraded),
	)

	s.logger.Debug().
		Str("city", key).
		Int("nearby", len(nearby)).
		Int("synthetic", len(synthetic)).
		Int("degraded", result.Degraded).
		Msg("aggregated city air quality")

	return result, nil
}

// MergePoints concatenates point lists, keeping the first occurrence of
// each id.
func MergePoints(lists ...[]*MonitoringPoint) []*MonitoringPoint {
	seen := make(map[string]bool)
	out := []*MonitoringPoint{}
	for _, list := range lists {
		for _, p := range list {
			if p == nil || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}
