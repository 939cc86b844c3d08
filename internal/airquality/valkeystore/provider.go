package valkeystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// DefaultTTL matches the in-process cache lifetime.
const DefaultTTL = airquality.DefaultCacheTTL

// ProviderConfig holds configuration for the shared-store provider.
type ProviderConfig struct {
	// Next is the provider consulted on a store miss (required).
	Next airquality.Provider

	// Store holds shared readings (required).
	Store Store

	// TTL bounds how long a shared reading is served (default: 30 minutes).
	TTL time.Duration

	Logger zerolog.Logger
}

// Provider serves readings from the shared store and falls back to the
// wrapped provider. Store failures degrade to a direct fetch.
type Provider struct {
	next   airquality.Provider
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProvider creates a new shared-store provider.
func NewProvider(cfg ProviderConfig) *Provider {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		next:   cfg.Next,
		store:  cfg.Store,
		ttl:    ttl,
		logger: cfg.Logger,
	}
}

// Name returns the wrapped provider's name.
func (p *Provider) Name() string {
	return p.next.Name()
}

// Key returns the shared store key for c.
func Key(c geo.Coordinate) string {
	k := airquality.KeyFor(c)
	return fmt.Sprintf("aq:reading:%.4f:%.4f", k.Lat, k.Lng)
}

// FetchPollution returns the shared reading at c when one exists, otherwise
// fetches from the wrapped provider and publishes the result.
func (p *Provider) FetchPollution(ctx context.Context, c geo.Coordinate) (*airquality.PollutantReading, error) {
	key := Key(c)

	data, err := p.store.Get(ctx, key)
	switch {
	case err == nil:
		var reading airquality.PollutantReading
		if jerr := json.Unmarshal(data, &reading); jerr == nil {
			return &reading, nil
		}
		p.logger.Warn().Str("key", key).Msg("discarding malformed shared reading")
	case errors.Is(err, ErrMiss):
	case ctx.Err() != nil:
		return nil, airquality.ClassifyError(ctx, "valkeystore.FetchPollution", err)
	default:
		p.logger.Warn().Err(err).Str("key", key).Msg("shared store read failed")
	}

	reading, err := p.next.FetchPollution(ctx, c)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(reading)
	if err == nil {
		err = p.store.Set(ctx, key, data, p.ttl)
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("shared store write failed")
	}

	return reading, nil
}
