package valkeystore_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/airquality/valkeystore"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	readErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, valkeystore.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) FetchPollution(_ context.Context, _ geo.Coordinate) (*airquality.PollutantReading, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &airquality.PollutantReading{
		PM25:          airquality.Float(42.5),
		CategoryIndex: 3,
		CapturedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func newTestProvider(next airquality.Provider, store valkeystore.Store) *valkeystore.Provider {
	return valkeystore.NewProvider(valkeystore.ProviderConfig{
		Next:   next,
		Store:  store,
		Logger: zerolog.New(io.Discard),
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "aq:reading:28.7041:77.1025", valkeystore.Key(geo.Coordinate{Lat: 28.70412, Lng: 77.10249}))
}

func TestProvider_MissThenHit(t *testing.T) {
	store := newMemStore()
	next := &countingProvider{}
	p := newTestProvider(next, store)
	c := geo.Coordinate{Lat: 28.7041, Lng: 77.1025}

	first, err := p.FetchPollution(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, valkeystore.DefaultTTL, store.ttls[valkeystore.Key(c)])

	second, err := p.FetchPollution(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)

	require.NotNil(t, second.PM25)
	assert.Equal(t, *first.PM25, *second.PM25)
	assert.Equal(t, first.CategoryIndex, second.CategoryIndex)
	assert.True(t, first.CapturedAt.Equal(second.CapturedAt))
	assert.Nil(t, second.CO)
	assert.Equal(t, "counting", p.Name())
}

func TestProvider_StoreFailureFallsThrough(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("connection refused")
	next := &countingProvider{}
	p := newTestProvider(next, store)

	_, err := p.FetchPollution(context.Background(), geo.Coordinate{Lat: 1, Lng: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestProvider_MalformedEntryRefetched(t *testing.T) {
	store := newMemStore()
	c := geo.Coordinate{Lat: 1, Lng: 1}
	store.data[valkeystore.Key(c)] = []byte("not json")
	next := &countingProvider{}

	_, err := newTestProvider(next, store).FetchPollution(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestProvider_UpstreamErrorNotStored(t *testing.T) {
	store := newMemStore()
	next := &countingProvider{err: &airquality.NetworkError{Op: "fetch", Err: errors.New("boom")}}
	c := geo.Coordinate{Lat: 1, Lng: 1}

	_, err := newTestProvider(next, store).FetchPollution(context.Background(), c)
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)
	assert.Empty(t, store.data)
}
