package airquality

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection converts points to a GeoJSON feature collection. Each
// feature carries the point's name, AQI and category display metadata so a
// map layer can style it without another lookup.
func FeatureCollection(points []*MonitoringPoint) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(points))}
	if len(points) == 0 {
		return fc
	}

	bounds := geom.NewBounds(geom.XY)
	for _, p := range points {
		pt := geom.NewPointFlat(geom.XY, []float64{p.Coordinate.Lng, p.Coordinate.Lat})
		bounds.Extend(pt)

		aqi := p.AQI()
		info := aqi.Info()
		props := map[string]any{
			"name":        p.Name,
			"isSynthetic": p.IsSynthetic,
			"aqi":         aqi.Score,
			"category":    aqi.Category,
			"label":       info.Label,
			"color":       info.Color,
			"capturedAt":  p.CapturedAt,
		}
		if p.Reading != nil {
			props["reading"] = p.Reading
		}
		if p.Degraded {
			props["degraded"] = true
			props["error"] = p.Error
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         p.ID,
			Geometry:   pt,
			Properties: props,
		})
	}
	fc.BBox = bounds

	return fc
}
