package worker_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunkainth/airpollutionmap/internal/worker"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

func newDispatcher(w worker.Warmer) *worker.Dispatcher {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Targets: targets(3), Concurrency: 1},
		Logger: zerolog.Nop(),
		Warmer: w,
	})
	return worker.NewDispatcher(job, zerolog.Nop())
}

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name      string
		warmer    *stubWarmer
		payload   string
		wantErr   error
		failed    bool
		refreshed []string
	}{
		{
			name:    "malformed payload",
			warmer:  &stubWarmer{},
			payload: `{"job":`,
			wantErr: worker.ErrMalformedMessage,
		},
		{
			name:    "unknown job",
			warmer:  &stubWarmer{},
			payload: `{"job":"reindex"}`,
			wantErr: worker.ErrUnknownJob,
		},
		{
			name:      "refresh all",
			warmer:    &stubWarmer{},
			payload:   `{"job":"refresh"}`,
			refreshed: []string{"City 0", "City 1", "City 2"},
		},
		{
			name:      "refresh named cities",
			warmer:    &stubWarmer{},
			payload:   `{"job":"REFRESH","cities":["city 2","Atlantis"]}`,
			refreshed: []string{"City 2"},
		},
		{
			name:    "refresh with no known city",
			warmer:  &stubWarmer{},
			payload: `{"job":"refresh","cities":["Atlantis"]}`,
			wantErr: worker.ErrNoTargets,
		},
		{
			name:    "refresh fails",
			warmer:  &stubWarmer{nearbyErr: geo.ErrInvalidLatitude},
			payload: `{"job":"refresh"}`,
			failed:  true,
		},
		{
			name:      "probe fails on a degraded point",
			warmer:    &stubWarmer{},
			payload:   `{"job":"probe"}`,
			failed:    true,
			refreshed: []string{"City 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newDispatcher(tt.warmer).Handle(context.Background(), []byte(tt.payload))

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, worker.Retryable(err))
			case tt.failed:
				assert.Error(t, err)
				assert.True(t, worker.Retryable(err))
			default:
				assert.NoError(t, err)
			}
			if tt.refreshed != nil {
				assert.ElementsMatch(t, tt.refreshed, tt.warmer.cities)
			}
		})
	}
}

func TestDispatcher_InterruptedRefreshIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newDispatcher(&stubWarmer{}).Handle(ctx, []byte(`{"job":"refresh"}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, worker.Retryable(err))
}

func TestDispatcher_InterruptedProbeIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newDispatcher(&stubWarmer{}).Handle(ctx, []byte(`{"job":"probe"}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, worker.Retryable(err))
}

func TestDispatcher_ProbeWithoutPointsFails(t *testing.T) {
	err := newDispatcher(nil).Handle(context.Background(), []byte(`{"job":"probe"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetched no points")
	assert.True(t, worker.Retryable(err))
}

func TestRetryable(t *testing.T) {
	assert.False(t, worker.Retryable(nil))
	assert.False(t, worker.Retryable(fmt.Errorf("decode: %w", worker.ErrMalformedMessage)))
	assert.True(t, worker.Retryable(errors.New("provider down")))
}

func TestRefreshConfig_Select(t *testing.T) {
	cfg := worker.RefreshConfig{Targets: []worker.RefreshTarget{
		{Name: "Pune", Priority: 2},
		{Name: "Delhi", Priority: 1},
		{Name: "Jaipur", Priority: 3},
	}}

	selected, missing := cfg.Select([]string{"jaipur", " DELHI ", "Goa"})

	var names []string
	for _, s := range selected {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Delhi", "Jaipur"}, names)
	assert.Equal(t, []string{"Goa"}, missing)
}
