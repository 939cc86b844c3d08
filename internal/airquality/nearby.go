package airquality

import (
	"strings"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Compass defaults, in degrees.
const (
	DefaultCardinalOffset          = 0.025
	DefaultDiagonalOffset          = 0.02
	DefaultHighPopulationThreshold = 1_000_000
	DefaultHighPopulationScale     = 2.0
)

// CompassConfig controls synthesized nearby locations for cities without a
// curated list.
type CompassConfig struct {
	// CardinalOffset is the N/E/S/W distance (default: 0.025).
	CardinalOffset float64

	// DiagonalOffset is applied to both axes for NE/SE/SW/NW (default: 0.02).
	DiagonalOffset float64

	// HighPopulationThreshold is the population at or above which offsets
	// are scaled (default: 1,000,000).
	HighPopulationThreshold int

	// HighPopulationScale multiplies the offsets of large cities (default: 2).
	HighPopulationScale float64
}

func (c CompassConfig) withDefaults() CompassConfig {
	if c.CardinalOffset <= 0 {
		c.CardinalOffset = DefaultCardinalOffset
	}
	if c.DiagonalOffset <= 0 {
		c.DiagonalOffset = DefaultDiagonalOffset
	}
	if c.HighPopulationThreshold <= 0 {
		c.HighPopulationThreshold = DefaultHighPopulationThreshold
	}
	if c.HighPopulationScale <= 0 {
		c.HighPopulationScale = DefaultHighPopulationScale
	}
	return c
}

// ScaleFor returns the offset multiplier for a city of the given population.
func (c CompassConfig) ScaleFor(population *int) float64 {
	c = c.withDefaults()
	if population != nil && *population >= c.HighPopulationThreshold {
		return c.HighPopulationScale
	}
	return 1
}

type compassDirection struct {
	name       string
	dLat, dLng float64 // unit multipliers
	diagonal   bool
}

var compassDirections = []compassDirection{
	{name: "North", dLat: 1, dLng: 0},
	{name: "Northeast", dLat: 1, dLng: 1, diagonal: true},
	{name: "East", dLat: 0, dLng: 1},
	{name: "Southeast", dLat: -1, dLng: 1, diagonal: true},
	{name: "South", dLat: -1, dLng: 0},
	{name: "Southwest", dLat: -1, dLng: -1, diagonal: true},
	{name: "West", dLat: 0, dLng: -1},
	{name: "Northwest", dLat: 1, dLng: -1, diagonal: true},
}

// CompassLocations returns eight locations around center, one per compass
// direction, followed by the center itself.
func CompassLocations(city string, center geo.Coordinate, cfg CompassConfig, scale float64) []Location {
	cfg = cfg.withDefaults()
	if scale <= 0 {
		scale = 1
	}

	slug := Slug(city)
	locations := make([]Location, 0, len(compassDirections)+1)
	for _, dir := range compassDirections {
		offset := cfg.CardinalOffset
		if dir.diagonal {
			offset = cfg.DiagonalOffset
		}
		offset *= scale

		locations = append(locations, Location{
			ID:         slug + "-" + strings.ToLower(dir.name),
			Name:       city + " - " + dir.name,
			Coordinate: center.Offset(dir.dLat*offset, dir.dLng*offset),
		})
	}

	return append(locations, Location{
		ID:         slug + "-center",
		Name:       city + " - Center",
		Coordinate: center,
	})
}

// Slug lower-cases name and joins its words with dashes.
func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
