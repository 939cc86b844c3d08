package models

import (
	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// AQISummary is an AQI value with its display metadata.
type AQISummary struct {
	Score       int                 `json:"score"`
	Category    airquality.Category `json:"category"`
	Label       string              `json:"label"`
	Color       string              `json:"color"`
	Precautions []string            `json:"precautions"`
}

// NewAQISummary describes v for display.
func NewAQISummary(v airquality.AQIValue) AQISummary {
	info := v.Info()
	return AQISummary{
		Score:       v.Score,
		Category:    v.Category,
		Label:       info.Label,
		Color:       info.Color,
		Precautions: airquality.Precautions(v.Score),
	}
}

// Reading is the response for a single coordinate.
type Reading struct {
	Coordinate geo.Coordinate               `json:"coordinate"`
	Reading    *airquality.PollutantReading `json:"reading"`
	AQI        AQISummary                   `json:"aqi"`
}

// CityAirQuality is the full aggregation response.
type CityAirQuality struct {
	City     string                        `json:"city"`
	Key      string                        `json:"key"`
	Center   geo.Coordinate                `json:"center"`
	Reading  *airquality.PollutantReading  `json:"reading"`
	AQI      AQISummary                    `json:"aqi"`
	Points   []*airquality.MonitoringPoint `json:"points"`
	Degraded int                           `json:"degraded"`
}

// NewCityAirQuality converts a service result.
func NewCityAirQuality(r *airquality.CityAirQuality) CityAirQuality {
	return CityAirQuality{
		City:     r.City,
		Key:      r.Key,
		Center:   r.Center,
		Reading:  r.Reading,
		AQI:      NewAQISummary(r.AQI),
		Points:   r.Points,
		Degraded: r.Degraded,
	}
}

// Nearby lists the locations that would be fetched for a city.
type Nearby struct {
	City      string                `json:"city"`
	Key       string                `json:"key"`
	Locations []airquality.Location `json:"locations"`
}

// CityMatch is one city search result.
type CityMatch struct {
	Name       string         `json:"name"`
	State      string         `json:"state,omitempty"`
	Country    string         `json:"country,omitempty"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Population *int           `json:"population,omitempty"`
	Score      int            `json:"score"`
	Source     city.Source    `json:"source"`
}

// NewCityMatch converts a resolver match.
func NewCityMatch(m city.Match) CityMatch {
	return CityMatch{
		Name:       m.Name,
		State:      m.State,
		Country:    m.Country,
		Coordinate: m.Coordinate,
		Population: m.Population,
		Score:      m.Score,
		Source:     m.Source,
	}
}

// CitySearch is the response for a city search.
type CitySearch struct {
	Query string      `json:"query"`
	Items []CityMatch `json:"items"`
	Meta  ListMeta    `json:"meta"`
}
