package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/telemetry"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

func installReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})
	return reader
}

// sumOf totals counter name over data points carrying every attribute in
// match.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string, match ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, name)
		points:
			for _, dp := range sum.DataPoints {
				for _, kv := range match {
					if v, ok := dp.Attributes.Value(kv.Key); !ok || v.Emit() != kv.Value.Emit() {
						continue points
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestCacheMetrics(t *testing.T) {
	reader := installReader(t)

	metrics, err := telemetry.NewCacheMetrics()
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := airquality.NewGeoDataCache(airquality.CacheConfig{
		MaxEntries:    2,
		EvictionBatch: 1,
		Observer:      metrics,
		Now:           func() time.Time { return now },
	})

	fetch := func(context.Context) (*airquality.PollutantReading, error) {
		return &airquality.PollutantReading{PM25: airquality.Float(10)}, nil
	}

	ctx := context.Background()
	for _, lat := range []float64{1, 2, 3} {
		_, err := cache.GetOrFetch(ctx, airquality.KeyFor(geo.Coordinate{Lat: lat, Lng: 0}), fetch)
		require.NoError(t, err)
	}
	_, err = cache.GetOrFetch(ctx, airquality.KeyFor(geo.Coordinate{Lat: 3, Lng: 0}), fetch)
	require.NoError(t, err)

	assert.Equal(t, int64(3), sumOf(t, reader, "airquality.cache.lookups", attribute.String("result", "miss")))
	assert.Equal(t, int64(1), sumOf(t, reader, "airquality.cache.lookups", attribute.String("result", "hit")))
	assert.Positive(t, sumOf(t, reader, "airquality.cache.evictions"))
}

type flakyProvider struct{ err error }

func (p flakyProvider) Name() string { return "flaky" }

func (p flakyProvider) FetchPollution(context.Context, geo.Coordinate) (*airquality.PollutantReading, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &airquality.PollutantReading{}, nil
}

func TestMeasuredProvider(t *testing.T) {
	reader := installReader(t)

	metrics, err := telemetry.NewProviderMetrics()
	require.NoError(t, err)

	ok := telemetry.Measure(flakyProvider{}, metrics)
	bad := telemetry.Measure(flakyProvider{err: errors.New("boom")}, metrics)
	assert.Equal(t, "flaky", ok.Name())

	_, err = ok.FetchPollution(context.Background(), geo.Coordinate{})
	require.NoError(t, err)
	_, err = bad.FetchPollution(context.Background(), geo.Coordinate{})
	require.Error(t, err)

	assert.Equal(t, int64(2), sumOf(t, reader, "airquality.provider.calls"))
	assert.Equal(t, int64(1), sumOf(t, reader, "airquality.provider.calls", attribute.String("outcome", telemetry.OutcomeError)))
}

func TestOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, telemetry.OutcomeOK, telemetry.Outcome(context.Background(), nil))
	assert.Equal(t, telemetry.OutcomeError, telemetry.Outcome(context.Background(), errors.New("boom")))
	assert.Equal(t, telemetry.OutcomeCancelled, telemetry.Outcome(ctx, context.Canceled))
}
