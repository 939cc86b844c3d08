// Package geo provides the coordinate and bounding box primitives shared by
// the air quality, city and viewport packages.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// Validation errors.
var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidBox       = errors.New("north-east corner must be above and right of south-west corner")
)

const earthRadiusMeters = 6371000

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports whether the coordinate lies within the valid degree ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: %v", ErrInvalidLatitude, c.Lat)
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: %v", ErrInvalidLongitude, c.Lng)
	}
	return nil
}

// Rounded returns the coordinate with both axes rounded to the given number
// of decimal places.
func (c Coordinate) Rounded(places int) Coordinate {
	return Coordinate{Lat: Round(c.Lat, places), Lng: Round(c.Lng, places)}
}

// Offset returns a new coordinate shifted by the given degree deltas.
func (c Coordinate) Offset(dLat, dLng float64) Coordinate {
	return Coordinate{Lat: c.Lat + dLat, Lng: c.Lng + dLng}
}

// String formats the coordinate as "lat,lng" with 5 decimals.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lng)
}

// Round rounds v half away from zero to the given number of decimal places.
// Negative zero is returned as zero.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale)/scale + 0
}

// Distance returns the planar distance between two coordinates in degrees.
// It is only meaningful for points close to each other, which is how the
// sampler uses it.
func Distance(a, b Coordinate) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng)
}

// HaversineMeters returns the great-circle distance between two coordinates
// in meters.
func HaversineMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox is a map viewport. Boxes crossing the antimeridian are not
// supported.
type BoundingBox struct {
	NorthEast Coordinate `json:"northEast"`
	SouthWest Coordinate `json:"southWest"`
}

// Validate checks both corners and their ordering.
func (b BoundingBox) Validate() error {
	if err := b.NorthEast.Validate(); err != nil {
		return fmt.Errorf("northEast: %w", err)
	}
	if err := b.SouthWest.Validate(); err != nil {
		return fmt.Errorf("southWest: %w", err)
	}
	if b.NorthEast.Lat < b.SouthWest.Lat || b.NorthEast.Lng < b.SouthWest.Lng {
		return ErrInvalidBox
	}
	return nil
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.SouthWest.Lat && c.Lat <= b.NorthEast.Lat &&
		c.Lng >= b.SouthWest.Lng && c.Lng <= b.NorthEast.Lng
}

// LatRange returns the box height in degrees.
func (b BoundingBox) LatRange() float64 {
	return b.NorthEast.Lat - b.SouthWest.Lat
}

// LngRange returns the box width in degrees.
func (b BoundingBox) LngRange() float64 {
	return b.NorthEast.Lng - b.SouthWest.Lng
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Coordinate {
	return Coordinate{
		Lat: (b.NorthEast.Lat + b.SouthWest.Lat) / 2,
		Lng: (b.NorthEast.Lng + b.SouthWest.Lng) / 2,
	}
}

// String renders the box like Leaflet's toBBoxString: "west,south,east,north".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
		b.SouthWest.Lng, b.SouthWest.Lat, b.NorthEast.Lng, b.NorthEast.Lat)
}
