package airquality_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

func TestFeatureCollection(t *testing.T) {
	points := []*airquality.MonitoringPoint{
		{
			ID:         "dwarka",
			Name:       "Dwarka",
			Coordinate: geo.Coordinate{Lat: 28.5921, Lng: 77.0460},
			Reading:    &airquality.PollutantReading{PM25: airquality.Float(60)},
		},
		{
			ID:         "igi-airport",
			Name:       "IGI Airport",
			Coordinate: geo.Coordinate{Lat: 28.5562, Lng: 77.0999},
			Degraded:   true,
			Error:      "fetch failed",
			CapturedAt: time.Unix(0, 0).UTC(),
		},
	}

	fc := airquality.FeatureCollection(points)
	require.Len(t, fc.Features, 2)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "FeatureCollection", decoded.Type)
	require.Len(t, decoded.Features, 2)

	first := decoded.Features[0]
	assert.Equal(t, "dwarka", first.ID)
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.Equal(t, []float64{77.0460, 28.5921}, first.Geometry.Coordinates)
	assert.Equal(t, "Unhealthy", first.Properties["label"])
	assert.Equal(t, "#ff0000", first.Properties["color"])

	second := decoded.Features[1]
	assert.Equal(t, true, second.Properties["degraded"])
	assert.Equal(t, float64(0), second.Properties["aqi"])
}

func TestFeatureCollection_Empty(t *testing.T) {
	fc := airquality.FeatureCollection(nil)
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}
