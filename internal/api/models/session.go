package models

import (
	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/viewport"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Viewport is a map viewport given by its edges.
type Viewport struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Box converts the viewport to a bounding box.
func (v Viewport) Box() geo.BoundingBox {
	return geo.BoundingBox{
		NorthEast: geo.Coordinate{Lat: v.North, Lng: v.East},
		SouthWest: geo.Coordinate{Lat: v.South, Lng: v.West},
	}
}

// CreateSessionRequest starts a map session for a city.
type CreateSessionRequest struct {
	City     string    `json:"city"`
	Lat      *float64  `json:"lat"`
	Lng      *float64  `json:"lng"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

// ChangeCityRequest moves a session to another city.
type ChangeCityRequest struct {
	City string   `json:"city"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// ViewportAccepted acknowledges a debounced viewport change.
type ViewportAccepted struct {
	SessionID string   `json:"sessionId"`
	Viewport  Viewport `json:"viewport"`
	Pending   bool     `json:"pending"`
}

// Session is the state of a map session.
type Session struct {
	ID        string                        `json:"id"`
	City      string                        `json:"city"`
	Key       string                        `json:"key"`
	Center    geo.Coordinate                `json:"center"`
	Viewport  *Viewport                     `json:"viewport,omitempty"`
	Reading   *airquality.PollutantReading  `json:"reading,omitempty"`
	AQI       *AQISummary                   `json:"aqi,omitempty"`
	Points    []*airquality.MonitoringPoint `json:"points"`
	Degraded  int                           `json:"degraded"`
	Version   uint64                        `json:"version"`
	CreatedAt Timestamp                     `json:"createdAt"`
	UpdatedAt Timestamp                     `json:"updatedAt"`
}

// NewSession converts a session snapshot.
func NewSession(s viewport.Snapshot) Session {
	out := Session{
		ID:        s.ID,
		City:      s.City,
		Key:       s.Key,
		Center:    s.Center,
		Reading:   s.Reading,
		Points:    s.Points,
		Degraded:  s.Degraded,
		Version:   s.Version,
		CreatedAt: Timestamp(s.CreatedAt),
		UpdatedAt: Timestamp(s.UpdatedAt),
	}
	if out.Points == nil {
		out.Points = []*airquality.MonitoringPoint{}
	}
	if s.Viewport != nil {
		v := ViewportFromBox(*s.Viewport)
		out.Viewport = &v
	}
	if s.AQI != nil {
		summary := NewAQISummary(*s.AQI)
		out.AQI = &summary
	}
	return out
}

// ViewportFromBox converts a bounding box to its edges.
func ViewportFromBox(b geo.BoundingBox) Viewport {
	return Viewport{
		North: b.NorthEast.Lat,
		South: b.SouthWest.Lat,
		East:  b.NorthEast.Lng,
		West:  b.SouthWest.Lng,
	}
}
