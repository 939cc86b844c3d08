package viewport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 30 * time.Minute

// Session errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCityRequired    = errors.New("city is required")
)

// Aggregator produces the aggregated air quality for a city.
type Aggregator interface {
	CanonicalKey(city string) string
	CityAirQuality(ctx context.Context, req airquality.CityRequest) (*airquality.CityAirQuality, error)
}

// ManagerConfig holds configuration for the session manager.
type ManagerConfig struct {
	Aggregator Aggregator

	// Debounce is the viewport quiet period (default: 500ms).
	Debounce time.Duration

	// IdleTTL expires untouched sessions (default: 30 minutes).
	IdleTTL time.Duration

	// RegenerateTimeout bounds one debounced regeneration (default: 30s).
	RegenerateTimeout time.Duration

	Logger zerolog.Logger
	Now    func() time.Time
}

// Manager owns the live map sessions.
type Manager struct {
	aggregator Aggregator
	debouncer  *Debouncer
	idleTTL    time.Duration
	timeout    time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a new session manager.
func NewManager(cfg ManagerConfig) *Manager {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	timeout := cfg.RegenerateTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		aggregator: cfg.Aggregator,
		debouncer:  NewDebouncer(cfg.Debounce),
		idleTTL:    idleTTL,
		timeout:    timeout,
		logger:     cfg.Logger,
		now:        now,
		sessions:   make(map[string]*Session),
	}
}

// Create starts a session for city and runs the first aggregation. The
// session is discarded when the primary reading cannot be fetched.
func (m *Manager) Create(ctx context.Context, city string, center geo.Coordinate, box *geo.BoundingBox) (Snapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Snapshot{}, ErrCityRequired
	}
	if err := center.Validate(); err != nil {
		return Snapshot{}, err
	}
	if box != nil {
		if err := box.Validate(); err != nil {
			return Snapshot{}, err
		}
	}

	s := newSession(uuid.NewString(), city, m.aggregator.CanonicalKey(city), center, m.now())
	if err := m.refresh(ctx, s, box); err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug().Str("session_id", s.ID).Str("city", city).Msg("session created")

	return s.Snapshot(), nil
}

// Get returns a session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Points returns the session's merged point set.
func (m *Manager) Points(id string) (Snapshot, error) {
	s, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// ChangeCity switches a session to a new city. Pending viewport work is
// cancelled, the point store is reset and the new city is aggregated.
func (m *Manager) ChangeCity(ctx context.Context, id, city string, center geo.Coordinate) (Snapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Snapshot{}, ErrCityRequired
	}
	if err := center.Validate(); err != nil {
		return Snapshot{}, err
	}

	s, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	m.debouncer.Cancel(id)

	s.regen.Lock()
	s.setCity(city, m.aggregator.CanonicalKey(city), center, m.now())
	s.regen.Unlock()

	if err := m.refresh(ctx, s, nil); err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

// UpdateViewport schedules a debounced regeneration for box.
func (m *Manager) UpdateViewport(id string, box geo.BoundingBox) error {
	if err := box.Validate(); err != nil {
		return err
	}

	s, err := m.Get(id)
	if err != nil {
		return err
	}

	m.debouncer.Trigger(id, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		if err := m.refresh(ctx, s, &box); err != nil {
			event := m.logger.Warn()
			if errors.Is(err, airquality.ErrCancelled) || errors.Is(err, context.Canceled) {
				event = m.logger.Debug()
			}
			event.Err(err).Str("session_id", id).Msg("viewport regeneration failed")
		}
	})
	return nil
}

// Pending reports whether a viewport regeneration is scheduled or running.
func (m *Manager) Pending(id string) bool {
	return m.debouncer.Pending(id)
}

// Delete ends a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.debouncer.Cancel(id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle longer than the idle TTL.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.debouncer.Cancel(id)
	}
	if len(expired) > 0 {
		m.logger.Debug().Int("expired", len(expired)).Msg("swept idle sessions")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done, then stops pending work.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.debouncer.Stop()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) refresh(ctx context.Context, s *Session, box *geo.BoundingBox) error {
	s.regen.Lock()
	defer s.regen.Unlock()

	if err := ctx.Err(); err != nil {
		return airquality.ClassifyError(ctx, "viewport.refresh", err)
	}

	city, center := s.City()
	result, err := m.aggregator.CityAirQuality(ctx, airquality.CityRequest{
		City:     city,
		Center:   center,
		Viewport: box,
		Store:    s.store,
	})
	if err != nil {
		return err
	}

	if !s.apply(city, box, result, m.now()) {
		m.logger.Debug().Str("session_id", s.ID).Msg("discarding regeneration for previous city")
	}
	return nil
}
