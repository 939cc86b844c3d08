package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Job names carried in JobMessage.Job.
const (
	JobRefresh = "refresh"
	JobProbe   = "probe"
)

// Errors for messages that redelivery cannot fix. Subscribers ack them.
var (
	ErrMalformedMessage = errors.New("malformed job message")
	ErrUnknownJob       = errors.New("unknown job")
	ErrNoTargets        = errors.New("no matching refresh targets")
)

// JobMessage is the payload published to the refresh topic.
//
//	{"job":"refresh"}                          every configured city
//	{"job":"refresh","cities":["Pune","Goa"]}  only the named cities
//	{"job":"probe"}                            top-priority city, all points must succeed
type JobMessage struct {
	Job    string   `json:"job"`
	Cities []string `json:"cities,omitempty"`
}

// Dispatcher runs the job a message names against a RefreshJob.
type Dispatcher struct {
	job    *RefreshJob
	logger zerolog.Logger
}

func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle decodes data and runs its job. A nil error means the message is
// done with; errors other than the sentinels above are worth a retry.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch strings.ToLower(msg.Job) {
	case JobRefresh:
		return d.refresh(ctx, msg.Cities)
	case JobProbe:
		return d.probe(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.Job)
	}
}

func (d *Dispatcher) refresh(ctx context.Context, cities []string) error {
	targets := d.job.config.Ordered()
	if len(cities) > 0 {
		var missing []string
		targets, missing = d.job.config.Select(cities)
		if len(missing) > 0 {
			d.logger.Warn().Strs("cities", missing).Msg("ignoring cities that are not refresh targets")
		}
		if len(targets) == 0 {
			return fmt.Errorf("%w: %s", ErrNoTargets, strings.Join(cities, ", "))
		}
	}

	result := d.job.RunTargets(ctx, targets)
	if result.Cancelled > 0 && ctx.Err() != nil {
		return fmt.Errorf("refresh interrupted: %w", ctx.Err())
	}
	if result.MostlyFailed() {
		return fmt.Errorf("refresh failed for %d of %d points", result.Failed, result.TotalPoints)
	}
	return nil
}

// probe refreshes the highest priority target. It fails when the run is
// interrupted, fetches nothing or has any degraded point.
func (d *Dispatcher) probe(ctx context.Context) error {
	target := d.job.config.Ordered()[0]
	result := d.job.RunTargets(ctx, []RefreshTarget{target})
	if result.Cancelled > 0 && ctx.Err() != nil {
		return fmt.Errorf("probe interrupted: %w", ctx.Err())
	}
	if result.TotalPoints == 0 {
		return fmt.Errorf("probe of %s fetched no points", target.Name)
	}
	if result.Failed > 0 {
		return fmt.Errorf("probe of %s: %d of %d points failed", target.Name, result.Failed, result.TotalPoints)
	}
	d.logger.Debug().Str("city", target.Name).Int("points", result.TotalPoints).Msg("probe passed")
	return nil
}
