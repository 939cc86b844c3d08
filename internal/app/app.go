// Package app assembles the aggregation stack from configuration. The API
// server, the refresh worker and aqictl share it.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/airquality/openweathermap"
	"github.com/varunkainth/airpollutionmap/internal/airquality/valkeystore"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/internal/config"
	"github.com/varunkainth/airpollutionmap/internal/database"
	"github.com/varunkainth/airpollutionmap/internal/geocode"
	"github.com/varunkainth/airpollutionmap/internal/provider/resilience"
	"github.com/varunkainth/airpollutionmap/internal/telemetry"
)

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg config.LogConfig, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Stack holds the wired components.
type Stack struct {
	Dataset   *city.Dataset
	Gazetteer *city.Gazetteer
	Registry  *resilience.Registry
	Provider  airquality.Provider
	Service   *airquality.Service
	Resolver  *city.Resolver

	pool   *pgxpool.Pool
	valkey *valkeystore.Client
}

// Close releases the database pool and the Valkey connection.
func (s *Stack) Close() {
	if s.valkey != nil {
		s.valkey.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Dependencies returns readiness checks for the backing stores in use.
func (s *Stack) Dependencies() map[string]func(ctx context.Context) error {
	deps := make(map[string]func(ctx context.Context) error)
	if s.valkey != nil {
		deps["valkey"] = s.valkey.Ping
	}
	if s.pool != nil {
		deps["postgres"] = s.pool.Ping
	}
	return deps
}

// Build wires the gazetteer, provider chain, cache, sampler, geocoders,
// aggregation service and city resolver.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stack, error) {
	s := &Stack{Registry: resilience.NewRegistry()}

	ds, err := city.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load city data: %w", err)
	}
	s.Dataset = ds

	if err := s.loadGazetteer(ctx, cfg, log); err != nil {
		s.Close()
		return nil, err
	}

	owm := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.Provider.APIKey,
		BaseURL:    cfg.Provider.BaseURL,
		HTTPClient: resilientClient(openweathermap.ProviderName, cfg.Provider, s.Registry, log),
		Logger:     log,
	})
	if cfg.Provider.APIKey == "" {
		log.Warn().Msg("provider.api_key is empty, pollution and city search requests will fail")
	}

	var provider airquality.Provider = owm
	if cfg.Valkey.Addr != "" {
		store, err := valkeystore.New(cfg.Valkey.Addr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect valkey: %w", err)
		}
		s.valkey = store
		provider = valkeystore.NewProvider(valkeystore.ProviderConfig{
			Next:   provider,
			Store:  store,
			TTL:    cfg.Cache.TTL,
			Logger: log,
		})
		log.Info().Str("addr", cfg.Valkey.Addr).Msg("shared reading store enabled")
	}

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("provider metrics: %w", err)
	}
	s.Provider = telemetry.Measure(provider, providerMetrics)

	cacheMetrics, err := telemetry.NewCacheMetrics()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	cache := airquality.NewGeoDataCache(airquality.CacheConfig{
		TTL:           cfg.Cache.TTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		EvictionBatch: cfg.Cache.EvictionBatch,
		Logger:        log,
		Observer:      cacheMetrics,
	})
	sampler := airquality.NewSpatialSampleGenerator(airquality.SamplerConfig{
		MinPoints:       cfg.Sampler.MinPoints,
		MaxPoints:       cfg.Sampler.MaxPoints,
		AttemptsPerCell: cfg.Sampler.AttemptsPerCell,
	})

	geocoders := geocode.Chain{geocode.NewGazetteer(s.Gazetteer, cfg.Geocoder.RadiusMeters)}
	if cfg.Geocoder.GoogleAPIKey != "" {
		google, err := geocode.NewGoogle(geocode.GoogleConfig{
			APIKey:    cfg.Geocoder.GoogleAPIKey,
			Gazetteer: s.Gazetteer,
			Logger:    log,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("google geocoder: %w", err)
		}
		geocoders = append(geocoders, google)
	}

	s.Service = airquality.NewService(airquality.ServiceConfig{
		Provider:  s.Provider,
		Cache:     cache,
		Sampler:   sampler,
		Aliases:   ds.Aliases,
		Directory: ds.Locations,
		Geocoder:  geocoders,
		Compass: airquality.CompassConfig{
			CardinalOffset:          cfg.Nearby.CardinalOffset,
			DiagonalOffset:          cfg.Nearby.DiagonalOffset,
			HighPopulationThreshold: cfg.Nearby.HighPopulationThreshold,
			HighPopulationScale:     cfg.Nearby.HighPopulationScale,
		},
		FetchConcurrency: cfg.Nearby.FetchConcurrency,
		Logger:           log,
	})

	var searcher city.Searcher
	if cfg.Provider.APIKey != "" {
		searcher = owm
	}
	s.Resolver = city.NewResolver(city.ResolverConfig{
		Gazetteer: s.Gazetteer,
		Searcher:  searcher,
		Logger:    log,
	})

	return s, nil
}

func (s *Stack) loadGazetteer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.Gazetteer.Source != "postgres" {
		s.Gazetteer = city.NewGazetteer(s.Dataset.Records)
		log.Info().Int("cities", s.Gazetteer.Len()).Msg("embedded gazetteer loaded")
		return nil
	}

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.pool = pool

	g, err := city.LoadGazetteer(ctx, city.NewPostgresSource(pool))
	if err != nil {
		return fmt.Errorf("load gazetteer: %w", err)
	}
	s.Gazetteer = g

	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Int("cities", g.Len()).
		Msg("gazetteer loaded from database")
	return nil
}

func resilientClient(name string, cfg config.ProviderConfig, registry *resilience.Registry, log zerolog.Logger) *resilience.Client {
	c := resilience.DefaultClientConfig(name)
	c.Timeout = cfg.Timeout
	c.MaxRetries = cfg.MaxRetries
	c.Breaker.OpenTimeout = cfg.OpenTimeout
	c.Breaker.FailureRatio = cfg.FailureRatio
	c.Registry = registry
	c.Logger = log
	return resilience.NewClient(c)
}
