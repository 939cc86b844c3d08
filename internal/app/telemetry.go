package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/config"
	"github.com/varunkainth/airpollutionmap/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

// InitTelemetry installs the OpenTelemetry providers for a binary. The
// returned func flushes them and must run before exit.
func InitTelemetry(ctx context.Context, cfg *config.Config, service, version string, log zerolog.Logger) (func(), error) {
	p, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	if p.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("exporting traces and metrics")
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("telemetry flush failed")
		}
	}, nil
}
