package airquality

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Sampler defaults.
const (
	DefaultMinPoints       = 10
	DefaultMaxPoints       = 15
	DefaultAttemptsPerCell = 8
)

// PointStore holds the monitoring points of one map session, in insertion
// order. It is scoped to a city and reset when the city changes.
type PointStore struct {
	mu     sync.RWMutex
	scope  string
	points map[string]*MonitoringPoint
	order  []string
}

// NewPointStore creates an empty store for the given scope.
func NewPointStore(scope string) *PointStore {
	return &PointStore{
		scope:  scope,
		points: make(map[string]*MonitoringPoint),
	}
}

// Reset drops every point and rescopes the store.
func (s *PointStore) Reset(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
	s.points = make(map[string]*MonitoringPoint)
	s.order = nil
}

// Scope returns the current scope key.
func (s *PointStore) Scope() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// Len returns the number of stored points.
func (s *PointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Get looks up a point by id.
func (s *PointStore) Get(id string) (*MonitoringPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[id]
	return p, ok
}

// Add inserts p unless its id is already present. It reports whether p was
// inserted.
func (s *PointStore) Add(p *MonitoringPoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[p.ID]; ok {
		return false
	}
	s.points[p.ID] = p
	s.order = append(s.order, p.ID)
	return true
}

// InBox returns the points inside box in insertion order.
func (s *PointStore) InBox(box geo.BoundingBox) []*MonitoringPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*MonitoringPoint
	for _, id := range s.order {
		if p := s.points[id]; box.Contains(p.Coordinate) {
			out = append(out, p)
		}
	}
	return out
}

// Points returns every point in insertion order.
func (s *PointStore) Points() []*MonitoringPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*MonitoringPoint, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.points[id])
	}
	return out
}

// SamplerConfig holds configuration for synthetic point generation.
type SamplerConfig struct {
	// MinPoints is the number of in-view points to reach (default: 10).
	MinPoints int

	// MaxPoints caps the returned points and sizes the grid (default: 15).
	MaxPoints int

	// AttemptsPerCell bounds re-sampling when a candidate is too close to
	// another point (default: 8).
	AttemptsPerCell int

	Now func() time.Time
}

// SpatialSampleGenerator fills a viewport with synthetic monitoring points,
// reusing existing in-view points and creating only as many as needed.
type SpatialSampleGenerator struct {
	minPoints int
	maxPoints int
	attempts  int
	now       func() time.Time
}

// NewSpatialSampleGenerator creates a new generator.
func NewSpatialSampleGenerator(cfg SamplerConfig) *SpatialSampleGenerator {
	minPoints := cfg.MinPoints
	if minPoints <= 0 {
		minPoints = DefaultMinPoints
	}

	maxPoints := cfg.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if maxPoints < minPoints {
		maxPoints = minPoints
	}

	attempts := cfg.AttemptsPerCell
	if attempts <= 0 {
		attempts = DefaultAttemptsPerCell
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &SpatialSampleGenerator{
		minPoints: minPoints,
		maxPoints: maxPoints,
		attempts:  attempts,
		now:       now,
	}
}

// MinSpacing returns the minimum distance in degrees between generated
// points for box.
func (g *SpatialSampleGenerator) MinSpacing(box geo.BoundingBox) float64 {
	return math.Min(box.LatRange(), box.LngRange()) / (2 * math.Sqrt(float64(g.maxPoints)))
}

// Generate returns up to MaxPoints points covering box. Points already in
// the store and inside box are returned unchanged; new synthetic points are
// added to the store only until MinPoints is reached.
func (g *SpatialSampleGenerator) Generate(store *PointStore, box geo.BoundingBox) ([]*MonitoringPoint, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}

	existing := store.InBox(box)
	if len(existing) >= g.minPoints || box.LatRange() == 0 || box.LngRange() == 0 {
		return capPoints(existing, g.maxPoints), nil
	}

	n := int(math.Ceil(math.Sqrt(float64(g.maxPoints))))
	cellLat := box.LatRange() / float64(n)
	cellLng := box.LngRange() / float64(n)
	spacing := g.MinSpacing(box)

	represented := make(map[int]bool, len(existing))
	// Existing points take part in the spacing check so a repeated call for
	// the same box rejects the same candidates.
	placed := make([]geo.Coordinate, 0, g.minPoints)
	for _, p := range existing {
		represented[cellOf(box, p.Coordinate, n, cellLat, cellLng)] = true
		placed = append(placed, p.Coordinate)
	}

	seed := boxSeed(box)
	order := rand.New(rand.NewPCG(seed, seed>>1)).Perm(n * n)
	now := g.now()
	count := len(existing)

	for _, cell := range order {
		if count >= g.minPoints {
			break
		}
		if represented[cell] {
			continue
		}

		row, col := cell/n, cell%n
		rng := rand.New(rand.NewPCG(seed, uint64(cell)+1))

		for attempt := 0; attempt < g.attempts; attempt++ {
			c := geo.Coordinate{
				Lat: box.SouthWest.Lat + (float64(row)+rng.Float64())*cellLat,
				Lng: box.SouthWest.Lng + (float64(col)+rng.Float64())*cellLng,
			}.Rounded(5)
			if !box.Contains(c) || tooClose(c, placed, spacing) {
				continue
			}

			p := NewSyntheticPoint(c, now)
			if !store.Add(p) {
				break
			}
			placed = append(placed, c)
			represented[cell] = true
			count++
			break
		}
	}

	return capPoints(store.InBox(box), g.maxPoints), nil
}

func capPoints(points []*MonitoringPoint, limit int) []*MonitoringPoint {
	if len(points) > limit {
		return points[:limit]
	}
	return points
}

func cellOf(box geo.BoundingBox, c geo.Coordinate, n int, cellLat, cellLng float64) int {
	row := clampIndex(int((c.Lat-box.SouthWest.Lat)/cellLat), n)
	col := clampIndex(int((c.Lng-box.SouthWest.Lng)/cellLng), n)
	return row*n + col
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func tooClose(c geo.Coordinate, placed []geo.Coordinate, spacing float64) bool {
	for _, p := range placed {
		if geo.Distance(c, p) < spacing {
			return true
		}
	}
	return false
}

// boxSeed hashes the box corners at 5 decimal places.
func boxSeed(box geo.BoundingBox) uint64 {
	var buf [32]byte
	for i, v := range []float64{box.SouthWest.Lat, box.SouthWest.Lng, box.NorthEast.Lat, box.NorthEast.Lng} {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(int64(math.Round(v*syntheticQuantum))))
	}
	return xxhash.Sum64(buf[:])
}
