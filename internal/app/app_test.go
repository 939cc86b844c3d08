package app_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunkainth/airpollutionmap/internal/app"
	"github.com/varunkainth/airpollutionmap/internal/config"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AIRMAP_PROVIDER_API_KEY", "")
	t.Setenv("AIRMAP_VALKEY_ADDR", "")
	t.Setenv("AIRMAP_GAZETTEER_SOURCE", "embedded")

	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewLogger_Level(t *testing.T) {
	log := app.NewLogger(config.LogConfig{Level: "DEBUG"}, "svc", "v1")
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log = app.NewLogger(config.LogConfig{Level: "chatty"}, "svc", "v1")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestBuild_EmbeddedGazetteer(t *testing.T) {
	cfg := loadConfig(t)

	stack, err := app.Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(stack.Close)

	assert.Positive(t, stack.Gazetteer.Len())
	assert.Equal(t, "openweathermap", stack.Provider.Name())

	health, ok := stack.Registry.Health("openweathermap")
	require.True(t, ok, "provider client registers with the health registry")
	assert.True(t, health.Healthy())

	match, err := stack.Resolver.Resolve(context.Background(), "Bombay")
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", match.Name)
	assert.Equal(t, "mumbai", stack.Service.CanonicalKey("Bombay"))

	locations, err := stack.Service.NearbyLocations(context.Background(), "Delhi", geo.Coordinate{Lat: 28.7041, Lng: 77.1025})
	require.NoError(t, err)
	assert.Len(t, locations, 9)

	assert.Equal(t, cfg.Cache.TTL, stack.Service.Cache().Stats().TTL)

	// Neither Postgres nor Valkey is configured.
	assert.Empty(t, stack.Dependencies())
}

func TestInitTelemetry_Disabled(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Telemetry.Enabled = false

	flush, err := app.InitTelemetry(context.Background(), cfg, "airmap-test", "v1", zerolog.Nop())
	require.NoError(t, err)
	assert.NotPanics(t, flush)
}
