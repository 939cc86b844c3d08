// Package main provides the entrypoint for the air quality map API server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/api"
	"github.com/varunkainth/airpollutionmap/internal/api/middleware"
	"github.com/varunkainth/airpollutionmap/internal/app"
	"github.com/varunkainth/airpollutionmap/internal/config"
	"github.com/varunkainth/airpollutionmap/internal/viewport"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airmap-api"

	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := app.NewLogger(cfg.Log, serviceName, Version)
	zerolog.DefaultContextLogger = &log

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting air quality map API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flushTelemetry, err := app.InitTelemetry(ctx, cfg, serviceName, Version, log)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry setup failed")
	}
	defer flushTelemetry()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	stack, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build service")
	}
	defer stack.Close()

	go stack.Service.Cache().RunJanitor(ctx, cfg.Cache.PurgeInterval)

	sessions := viewport.NewManager(viewport.ManagerConfig{
		Aggregator: stack.Service,
		Debounce:   cfg.Session.Debounce,
		IdleTTL:    cfg.Session.IdleTTL,
		Logger:     log,
	})
	go sessions.Run(ctx)

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		Service:        stack.Service,
		Resolver:       stack.Resolver,
		Sessions:       sessions,
		Registry:       stack.Registry,
		Dependencies:   stack.Dependencies(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequireTLS:     cfg.Server.RequireTLS,
		RateLimit:      cfg.Server.RateLimit,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		log.Error().Err(err).Msg("server error")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
