// Package main provides the entrypoint for the refresh worker. It keeps the
// shared reading store warm for the busiest cities on a cron schedule and on
// Pub/Sub request.
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

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/internal/app"
	"github.com/varunkainth/airpollutionmap/internal/config"
	"github.com/varunkainth/airpollutionmap/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airmap-worker"

	configFile := flag.String("config", "", "path to config file")
	runOnce := flag.Bool("once", false, "run a single refresh and exit")
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
	log.Info().Str("build_time", BuildTime).Msg("starting refresh worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flushTelemetry, err := app.InitTelemetry(ctx, cfg, serviceName, Version, log)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry setup failed")
	}
	defer flushTelemetry()

	stack, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build service")
	}
	defer stack.Close()

	if cfg.Valkey.Addr == "" {
		log.Warn().Msg("valkey.addr is empty, refreshes only warm this process's cache")
	}

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets:     worker.DefaultRefreshTargets(),
			Concurrency: cfg.Worker.Concurrency,
			Timeout:     cfg.Worker.Timeout,
		},
		Logger: log,
		Warmer: stack.Service,
	})

	if *runOnce {
		result := job.Run(ctx)
		if result.MostlyFailed() {
			log.Error().Int("failed", result.Failed).Msg("refresh mostly failed")
			os.Exit(1) //nolint:gocritic // deferred cleanup is best-effort
		}
		return
	}

	go stack.Service.Cache().RunJanitor(ctx, cfg.Cache.PurgeInterval)

	if cfg.Worker.Schedule != "" {
		scheduler, err := worker.NewScheduler(cfg.Worker.Schedule, job, log)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid worker schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if cfg.Worker.ProjectID != "" && cfg.Worker.SubscriptionID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.ProjectID,
			SubscriptionName: cfg.Worker.SubscriptionID,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Health endpoint for the container platform.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"refresh": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
