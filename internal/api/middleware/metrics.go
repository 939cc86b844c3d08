package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records RED metrics for the HTTP server.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	active   metric.Int64UpDownCounter
	bodySize metric.Int64Histogram
}

// NewMetrics registers the server instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	var (
		m    Metrics
		errs [4]error
	)
	m.duration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("s"), metric.WithDescription("Time taken to serve a request"))
	m.requests, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithUnit("{request}"), metric.WithDescription("Requests served"))
	m.active, errs[2] = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithUnit("{request}"), metric.WithDescription("Requests being served"))
	m.bodySize, errs[3] = meter.Int64Histogram("http.server.response.size",
		metric.WithUnit("By"), metric.WithDescription("Response body size"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, fmt.Errorf("http server metrics: %w", err)
	}
	return &m, nil
}

// Middleware records every request under its chi route pattern, so ids in
// the path do not become label values.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			inFlight := metric.WithAttributes(attribute.String("http.method", r.Method))
			m.active.Add(ctx, 1, inFlight)
			defer m.active.Add(ctx, -1, inFlight)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			labels := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.status_code", strconv.Itoa(sw.statusCode)),
				attribute.Bool("error", sw.statusCode >= http.StatusBadRequest),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), labels)
			m.requests.Add(ctx, 1, labels)
			m.bodySize.Record(ctx, sw.written, labels)
		})
	}
}
