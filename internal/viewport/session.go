package viewport

import (
	"sync"
	"time"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Session is one map view. Its point store is scoped to the current city
// and is reset when the city changes.
type Session struct {
	ID        string
	CreatedAt time.Time

	store *airquality.PointStore

	// regen serializes regenerations with city changes.
	regen sync.Mutex

	mu       sync.RWMutex
	city     string
	center   geo.Coordinate
	viewport *geo.BoundingBox
	result   *airquality.CityAirQuality
	version  uint64
	lastSeen time.Time
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID        string                        `json:"id"`
	City      string                        `json:"city"`
	Key       string                        `json:"key"`
	Center    geo.Coordinate                `json:"center"`
	Viewport  *geo.BoundingBox              `json:"viewport,omitempty"`
	Reading   *airquality.PollutantReading  `json:"reading,omitempty"`
	AQI       *airquality.AQIValue          `json:"aqi,omitempty"`
	Points    []*airquality.MonitoringPoint `json:"points"`
	Degraded  int                           `json:"degraded"`
	Version   uint64                        `json:"version"`
	CreatedAt time.Time                     `json:"createdAt"`
	UpdatedAt time.Time                     `json:"updatedAt"`
}

func newSession(id, city, key string, center geo.Coordinate, now time.Time) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		store:     airquality.NewPointStore(key),
		city:      city,
		center:    center,
		lastSeen:  now,
	}
	return s
}

// Store returns the session's point store.
func (s *Session) Store() *airquality.PointStore {
	return s.store
}

// City returns the current city and center.
func (s *Session) City() (string, geo.Coordinate) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.city, s.center
}

func (s *Session) setCity(city, key string, center geo.Coordinate, now time.Time) {
	s.mu.Lock()
	s.city = city
	s.center = center
	s.result = nil
	s.viewport = nil
	s.version++
	s.lastSeen = now
	s.mu.Unlock()

	s.store.Reset(key)
}

// apply records a regeneration result unless the city changed while it ran.
func (s *Session) apply(city string, box *geo.BoundingBox, result *airquality.CityAirQuality, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.city != city {
		return false
	}
	if box != nil {
		b := *box
		s.viewport = &b
	}
	s.result = result
	s.version++
	s.lastSeen = now
	return true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// Snapshot returns the nearby points of the last aggregation merged with
// the capped synthetic points generated for the current viewport.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:        s.ID,
		City:      s.city,
		Key:       s.store.Scope(),
		Center:    s.center,
		Version:   s.version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.lastSeen,
	}
	if s.viewport != nil {
		box := *s.viewport
		snap.Viewport = &box
	}
	if s.result == nil {
		snap.Points = []*airquality.MonitoringPoint{}
		return snap
	}

	snap.Reading = s.result.Reading
	aqi := s.result.AQI
	snap.AQI = &aqi
	snap.Degraded = s.result.Degraded
	snap.Points = airquality.MergePoints(s.result.Nearby, s.result.Synthetic)
	return snap
}
