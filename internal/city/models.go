// Package city resolves free-text city queries against a gazetteer and
// normalizes city names to the keys used for curated location lookups.
package city

import (
	"context"
	"errors"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// City errors.
var (
	ErrCityNotFound = errors.New("city not found")
	ErrEmptyQuery   = errors.New("query is empty")
	ErrNoRecords    = errors.New("gazetteer has no records")
)

// Record is one gazetteer entry. Records are immutable once loaded.
type Record struct {
	Name       string         `json:"name"`
	State      string         `json:"state"`
	Country    string         `json:"country"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Aliases    []string       `json:"aliases,omitempty"`
	Population *int           `json:"population,omitempty"`
}

// Source identifies where a match came from.
type Source string

const (
	SourceGazetteer Source = "gazetteer"
	SourceExternal  Source = "external"
)

// Match is a scored search result.
type Match struct {
	Record
	Score  int    `json:"score"`
	Source Source `json:"source"`
}

// ExternalCity is a result from an external city search service.
type ExternalCity struct {
	Name    string
	Lat     float64
	Lon     float64
	Country string
	State   string
}

// Searcher is an external city search service.
type Searcher interface {
	SearchCities(ctx context.Context, query string, limit int) ([]ExternalCity, error)
}
