package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the refresh job on a cron schedule. A run that is still in
// progress when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	job    *RefreshJob
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec (standard five-field cron syntax) and returns a
// scheduler that is not yet started.
func NewScheduler(spec string, job *RefreshJob, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{job: job, logger: logger}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	))
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		s.cancel()
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	result := s.job.Run(s.ctx)
	if result.MostlyFailed() {
		s.logger.Warn().
			Int("failed", result.Failed).
			Int("total_points", result.TotalPoints).
			Msg("scheduled refresh mostly failed")
	}
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() {
	s.logger.Info().Int("entries", len(s.cron.Entries())).Msg("starting scheduler")
	s.cron.Start()
}

// Stop cancels any running refresh and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
