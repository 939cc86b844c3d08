// Package api provides the HTTP API for the air quality map.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/api/handler"
	"github.com/varunkainth/airpollutionmap/internal/api/middleware"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Service  *airquality.Service
	Resolver handler.CityResolver
	Sessions SessionManager
	Registry *resilience.Registry

	// Dependencies are readiness checks for backing stores.
	Dependencies map[string]func(ctx context.Context) error

	// AllowedOrigins enables CORS for the map front end when non-empty.
	AllowedOrigins []string
	RequireTLS     bool

	// RateLimit overrides StandardRateLimit's request count when positive.
	RateLimit int
}

// SessionManager is the session store behind /v1/sessions.
type SessionManager interface {
	handler.SessionManager
	Len() int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airmap-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.AllowedOrigins))
	}
	r.Use(middleware.RequireJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})

	opsCfg := handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Registry:     cfg.Registry,
		Dependencies: cfg.Dependencies,
	}
	if cfg.Service != nil {
		opsCfg.Cache = cfg.Service.Cache()
	}
	if cfg.Sessions != nil {
		opsCfg.Sessions = cfg.Sessions
	}

	opsHandler := handler.NewOpsHandler(opsCfg)
	metadataHandler := handler.NewMetadataHandler()
	cityHandler := handler.NewCityHandler(cfg.Resolver)
	airQualityHandler := handler.NewAirQualityHandler(cfg.Service, cfg.Resolver)
	sessionHandler := handler.NewSessionHandler(cfg.Sessions, cfg.Resolver)

	standard := middleware.StandardRateLimit
	if cfg.RateLimit > 0 {
		standard.RequestLimit = cfg.RateLimit
	}
	standardRateLimit := middleware.RateLimitByIP(standard)
	aggregationRateLimit := middleware.RateLimitByIP(middleware.AggregationRateLimit)
	viewportRateLimit := middleware.RateLimitBySession(middleware.ViewportRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/aqi-categories", metadataHandler.AQICategories)
		})

		r.Route("/cities", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", cityHandler.Search)
			r.Get("/resolve", cityHandler.Resolve)
		})

		r.With(standardRateLimit).Get("/nearby", airQualityHandler.Nearby)

		r.Route("/air-quality", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", airQualityHandler.Reading)
			r.With(aggregationRateLimit).Get("/city", airQualityHandler.City)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.With(aggregationRateLimit).Post("/", sessionHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.With(standardRateLimit).Delete("/", sessionHandler.Delete)
				r.With(aggregationRateLimit).Put("/city", sessionHandler.ChangeCity)
				r.With(viewportRateLimit).Put("/viewport", sessionHandler.UpdateViewport)
				r.With(standardRateLimit).Get("/points", sessionHandler.Points)
			})
		})
	})

	return r
}
