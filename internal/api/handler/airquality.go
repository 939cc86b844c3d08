package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/api/models"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// AirQualityService is the aggregation service behind the read endpoints.
type AirQualityService interface {
	CanonicalKey(city string) string
	FetchReading(ctx context.Context, c geo.Coordinate) (*airquality.PollutantReading, error)
	NearbyLocations(ctx context.Context, city string, center geo.Coordinate) ([]airquality.Location, error)
	CityAirQuality(ctx context.Context, req airquality.CityRequest) (*airquality.CityAirQuality, error)
}

// AirQualityHandler handles reading and aggregation endpoints.
type AirQualityHandler struct {
	service  AirQualityService
	resolver CityResolver
}

// NewAirQualityHandler creates a new AirQualityHandler. resolver may be nil,
// in which case city endpoints require lat and lng.
func NewAirQualityHandler(service AirQualityService, resolver CityResolver) *AirQualityHandler {
	return &AirQualityHandler{service: service, resolver: resolver}
}

// Reading handles GET /v1/air-quality?lat=&lng=.
func (h *AirQualityHandler) Reading(w http.ResponseWriter, r *http.Request) {
	c, found, errs := queryCoordinate(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid coordinate", errs)
		return
	}
	if !found {
		writeError(w, r, errCoordinateRequired)
		return
	}

	reading, err := h.service.FetchReading(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Reading{
		Coordinate: c,
		Reading:    reading,
		AQI:        models.NewAQISummary(airquality.ComputeAQI(reading)),
	})
}

// Nearby handles GET /v1/nearby?city=&lat=&lng=. Nothing is fetched.
func (h *AirQualityHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	name, center, ok := h.cityTarget(w, r)
	if !ok {
		return
	}

	locations, err := h.service.NearbyLocations(r.Context(), name, center)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Nearby{
		City:      name,
		Key:       h.service.CanonicalKey(name),
		Locations: locations,
	})
}

// City handles GET /v1/air-quality/city?city=&lat=&lng=. With
// ?format=geojson the merged points are returned as a GeoJSON
// FeatureCollection.
func (h *AirQualityHandler) City(w http.ResponseWriter, r *http.Request) {
	format, ok := queryFormat(w, r)
	if !ok {
		return
	}
	name, center, ok := h.cityTarget(w, r)
	if !ok {
		return
	}

	result, err := h.service.CityAirQuality(r.Context(), airquality.CityRequest{City: name, Center: center})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if format == formatGeoJSON {
		response.GeoJSON(w, r, airquality.FeatureCollection(result.Points))
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewCityAirQuality(result))
}

// cityTarget reads city, lat and lng, resolving the center from the city
// name when no coordinate is given. It writes the error response itself.
func (h *AirQualityHandler) cityTarget(w http.ResponseWriter, r *http.Request) (string, geo.Coordinate, bool) {
	name := strings.TrimSpace(r.URL.Query().Get("city"))
	if name == "" {
		response.BadRequest(w, r, "city is required", []models.FieldError{
			{Field: "city", Message: "is required", Code: "REQUIRED"},
		})
		return "", geo.Coordinate{}, false
	}

	c, found, errs := queryCoordinate(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid coordinate", errs)
		return "", geo.Coordinate{}, false
	}

	name, center, err := locate(r.Context(), h.resolver, name, c, found)
	if err != nil {
		writeError(w, r, err)
		return "", geo.Coordinate{}, false
	}
	return name, center, true
}
