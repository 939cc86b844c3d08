package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Warmer is the part of the aggregation service the job drives.
type Warmer interface {
	NearbyLocations(ctx context.Context, city string, center geo.Coordinate) ([]airquality.Location, error)
	FetchLocations(ctx context.Context, locations []airquality.Location) []*airquality.MonitoringPoint
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger

	// Warmer is optional; without one every target is skipped.
	Warmer Warmer
}

// RefreshJob fetches the nearby locations of each target city through the
// Warmer, which leaves the readings in the shared store.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger
	warmer Warmer
	stats  refreshStats
}

// NewRefreshJob applies defaults to cfg.Config.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	c := cfg.Config
	defaults := DefaultRefreshConfig()
	if len(c.Targets) == 0 {
		c.Targets = defaults.Targets
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return &RefreshJob{config: c, logger: cfg.Logger, warmer: cfg.Warmer}
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// RefreshResult summarizes one run. Points are counted individually; a city
// whose locations could not be listed counts as one failure.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Cities      int
	TotalPoints int
	Successful  int
	Failed      int
	Cancelled   int
	Errors      []RefreshError
}

// MostlyFailed reports whether failures outnumber successes.
func (r *RefreshResult) MostlyFailed() bool {
	return r.Failed > r.Successful
}

func (r *RefreshResult) add(o *RefreshResult) {
	r.TotalPoints += o.TotalPoints
	r.Successful += o.Successful
	r.Failed += o.Failed
	r.Cancelled += o.Cancelled
	r.Errors = append(r.Errors, o.Errors...)
}

// RefreshError records a failed location, or a failed city when Location is
// empty.
type RefreshError struct {
	City       string
	Location   string
	Coordinate geo.Coordinate
	Error      string
}

// Run refreshes every configured target in priority order.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunTargets(ctx, j.config.Ordered())
}

// RunTargets refreshes targets with at most Concurrency cities in flight.
// Targets not yet started when ctx ends are counted as cancelled.
func (j *RefreshJob) RunTargets(ctx context.Context, targets []RefreshTarget) *RefreshResult {
	result := &RefreshResult{StartTime: time.Now(), Cities: len(targets)}
	j.logger.Info().
		Int("cities", len(targets)).
		Int("concurrency", j.config.Concurrency).
		Msg("refresh started")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(j.config.Concurrency)
	for _, target := range targets {
		g.Go(func() error {
			var cr *RefreshResult
			if ctx.Err() != nil {
				cr = &RefreshResult{Cancelled: 1}
			} else {
				cr = j.refreshCity(ctx, target)
			}
			mu.Lock()
			result.add(cr)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	j.stats.record(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("points", result.TotalPoints).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("cancelled", result.Cancelled).
		Msg("refresh finished")
	return result
}

func (j *RefreshJob) refreshCity(ctx context.Context, target RefreshTarget) *RefreshResult {
	out := &RefreshResult{}
	if j.warmer == nil {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	locations, err := j.warmer.NearbyLocations(ctx, target.Name, target.Center)
	if err != nil {
		out.Failed = 1
		out.Errors = []RefreshError{{City: target.Name, Coordinate: target.Center, Error: err.Error()}}
		return out
	}

	for _, p := range j.warmer.FetchLocations(ctx, locations) {
		out.TotalPoints++
		switch {
		case !p.Degraded:
			out.Successful++
		case errors.Is(ctx.Err(), context.Canceled):
			out.Cancelled++
		default:
			out.Failed++
			out.Errors = append(out.Errors, RefreshError{
				City:       target.Name,
				Location:   p.Name,
				Coordinate: p.Coordinate,
				Error:      p.Error,
			})
		}
	}

	j.logger.Debug().
		Str("city", target.Name).
		Int("points", out.TotalPoints).
		Int("failed", out.Failed).
		Msg("city refreshed")
	return out
}

// RefreshMetrics are cumulative counters over all runs of a job.
type RefreshMetrics struct {
	TotalRefreshes      int64
	SuccessfulRefresh   int64
	FailedRefreshes     int64
	CitiesRefreshed     int64
	Cancelled           int64
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

type refreshStats struct {
	runs, successful, failed, cities, cancelled atomic.Int64
	totalNanos, lastNanos, lastAtNanos          atomic.Int64
}

func (s *refreshStats) record(r *RefreshResult) {
	s.runs.Add(1)
	s.successful.Add(int64(r.Successful))
	s.failed.Add(int64(r.Failed))
	s.cities.Add(int64(r.Cities))
	s.cancelled.Add(int64(r.Cancelled))
	s.totalNanos.Add(int64(r.Duration))
	s.lastNanos.Store(int64(r.Duration))
	s.lastAtNanos.Store(r.EndTime.UnixNano())
}

// GetMetrics returns the counters so far.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	s := &j.stats
	m := RefreshMetrics{
		TotalRefreshes:      s.runs.Load(),
		SuccessfulRefresh:   s.successful.Load(),
		FailedRefreshes:     s.failed.Load(),
		CitiesRefreshed:     s.cities.Load(),
		Cancelled:           s.cancelled.Load(),
		LastRefreshDuration: time.Duration(s.lastNanos.Load()),
		TotalDuration:       time.Duration(s.totalNanos.Load()),
	}
	if at := s.lastAtNanos.Load(); at != 0 {
		m.LastRefreshAt = time.Unix(0, at)
	}
	return m
}

// MetricsSnapshot renders GetMetrics for the worker's health endpoint.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"cities_refreshed":      m.CitiesRefreshed,
		"cancelled":             m.Cancelled,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
