package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

const instrumentationName = "github.com/varunkainth/airpollutionmap/internal/telemetry"

var (
	lookupHit  = metric.WithAttributes(attribute.String("result", "hit"))
	lookupMiss = metric.WithAttributes(attribute.String("result", "miss"))
)

// CacheMetrics counts reading cache lookups by result, and evictions. It
// implements airquality.CacheObserver. Events are recorded even when the
// request that caused them was cancelled.
type CacheMetrics struct {
	lookups   metric.Int64Counter
	evictions metric.Int64Counter
}

func NewCacheMetrics() (*CacheMetrics, error) {
	meter := otel.Meter(instrumentationName)

	lookups, err1 := meter.Int64Counter("airquality.cache.lookups",
		metric.WithUnit("{lookup}"), metric.WithDescription("Reading cache lookups by result"))
	evictions, err2 := meter.Int64Counter("airquality.cache.evictions",
		metric.WithUnit("{entry}"), metric.WithDescription("Readings evicted to stay under capacity"))
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}
	return &CacheMetrics{lookups: lookups, evictions: evictions}, nil
}

func (m *CacheMetrics) CacheHit(ctx context.Context) {
	m.lookups.Add(context.WithoutCancel(ctx), 1, lookupHit)
}

func (m *CacheMetrics) CacheMiss(ctx context.Context) {
	m.lookups.Add(context.WithoutCancel(ctx), 1, lookupMiss)
}

func (m *CacheMetrics) CacheEvicted(ctx context.Context, n int) {
	m.evictions.Add(context.WithoutCancel(ctx), int64(n))
}

// Provider call outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// ProviderMetrics times pollution provider calls.
type ProviderMetrics struct {
	latency metric.Float64Histogram
	calls   metric.Int64Counter
}

func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(instrumentationName)

	latency, err1 := meter.Float64Histogram("airquality.provider.duration",
		metric.WithUnit("s"), metric.WithDescription("Pollution provider call latency"))
	calls, err2 := meter.Int64Counter("airquality.provider.calls",
		metric.WithUnit("{call}"), metric.WithDescription("Pollution provider calls by outcome"))
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("provider metrics: %w", err)
	}
	return &ProviderMetrics{latency: latency, calls: calls}, nil
}

// Outcome classifies a finished call. A call that failed because its
// context ended is cancelled, not an error.
func Outcome(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case ctx.Err() != nil:
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

func (m *ProviderMetrics) record(ctx context.Context, provider string, took time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", Outcome(ctx, err)),
	)
	ctx = context.WithoutCancel(ctx)
	m.latency.Record(ctx, took.Seconds(), attrs)
	m.calls.Add(ctx, 1, attrs)
}

// MeasuredProvider is an airquality.Provider that records every fetch.
type MeasuredProvider struct {
	airquality.Provider
	metrics *ProviderMetrics
}

// Measure wraps p with call metrics.
func Measure(p airquality.Provider, metrics *ProviderMetrics) *MeasuredProvider {
	return &MeasuredProvider{Provider: p, metrics: metrics}
}

func (p *MeasuredProvider) FetchPollution(ctx context.Context, c geo.Coordinate) (*airquality.PollutantReading, error) {
	start := time.Now()
	reading, err := p.Provider.FetchPollution(ctx, c)
	p.metrics.record(ctx, p.Name(), time.Since(start), err)
	return reading, err
}
