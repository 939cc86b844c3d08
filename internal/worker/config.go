// Package worker warms the shared reading store for the most viewed cities
// so that map requests are served without waiting on the provider.
package worker

import (
	"sort"
	"strings"
	"time"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// RefreshTarget is a city whose nearby locations are refreshed.
type RefreshTarget struct {
	// Name is the city name as a user would type it. Curated locations are
	// looked up through the alias table, so "Bombay" and "Mumbai" are the
	// same target.
	Name string

	// Center is used for compass points when the city has no curated
	// locations.
	Center geo.Coordinate

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Targets are the cities to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of cities refreshed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the refresh of a single city.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:     DefaultRefreshTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultRefreshTargets returns the metro cities with curated location sets
// plus the large cities that fall back to compass points.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{Name: "Delhi", Priority: 1, Center: geo.Coordinate{Lat: 28.7041, Lng: 77.1025}},
		{Name: "Mumbai", Priority: 1, Center: geo.Coordinate{Lat: 19.0760, Lng: 72.8777}},
		{Name: "Bangalore", Priority: 1, Center: geo.Coordinate{Lat: 12.9716, Lng: 77.5946}},
		{Name: "Kolkata", Priority: 1, Center: geo.Coordinate{Lat: 22.5726, Lng: 88.3639}},
		{Name: "Chennai", Priority: 1, Center: geo.Coordinate{Lat: 13.0827, Lng: 80.2707}},
		{Name: "Gurugram", Priority: 2, Center: geo.Coordinate{Lat: 28.4595, Lng: 77.0266}},
		{Name: "Hyderabad", Priority: 2, Center: geo.Coordinate{Lat: 17.3850, Lng: 78.4867}},
		{Name: "Pune", Priority: 2, Center: geo.Coordinate{Lat: 18.5204, Lng: 73.8567}},
		{Name: "Ahmedabad", Priority: 3, Center: geo.Coordinate{Lat: 23.0225, Lng: 72.5714}},
		{Name: "Jaipur", Priority: 3, Center: geo.Coordinate{Lat: 26.9124, Lng: 75.7873}},
		{Name: "Lucknow", Priority: 3, Center: geo.Coordinate{Lat: 26.8467, Lng: 80.9462}},
	}
}

// Ordered returns the targets sorted by priority. Targets of equal priority
// keep their configured order.
func (c RefreshConfig) Ordered() []RefreshTarget {
	out := make([]RefreshTarget, len(c.Targets))
	copy(out, c.Targets)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Select returns the configured targets named in names, ordered by
// priority. Names are matched case-insensitively; unmatched ones are
// returned in missing.
func (c RefreshConfig) Select(names []string) (selected []RefreshTarget, missing []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	for _, t := range c.Ordered() {
		key := strings.ToLower(t.Name)
		if want[key] {
			selected = append(selected, t)
			delete(want, key)
		}
	}
	for _, n := range names {
		if want[strings.ToLower(strings.TrimSpace(n))] {
			missing = append(missing, n)
		}
	}
	return selected, missing
}
