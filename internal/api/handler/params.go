package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/varunkainth/airpollutionmap/internal/api/models"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// CityResolver resolves free-text city names.
type CityResolver interface {
	Search(ctx context.Context, query string, limit int) ([]city.Match, error)
	Resolve(ctx context.Context, query string) (*city.Match, error)
}

// decodeJSON decodes the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// Response formats selected with ?format=.
const (
	formatJSON    = "json"
	formatGeoJSON = "geojson"
)

// queryFormat reads ?format=, defaulting to JSON. It writes the error
// response itself when the format is unknown.
func queryFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	switch f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); f {
	case "", formatJSON:
		return formatJSON, true
	case formatGeoJSON:
		return f, true
	default:
		response.BadRequest(w, r, "unsupported format", []models.FieldError{
			{Field: "format", Message: "must be json or geojson", Code: "INVALID_ENUM"},
		})
		return "", false
	}
}

// queryFloat parses an optional float query parameter. The bool reports
// whether the parameter was present.
func queryFloat(r *http.Request, name string) (float64, bool, *models.FieldError) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, &models.FieldError{Field: name, Message: "must be a number", Code: "INVALID_NUMBER"}
	}
	return v, true, nil
}

// queryCoordinate reads lat and lng. Both must be given together; found is
// false when neither is present.
func queryCoordinate(r *http.Request) (c geo.Coordinate, found bool, errs []models.FieldError) {
	lat, hasLat, latErr := queryFloat(r, "lat")
	lng, hasLng, lngErr := queryFloat(r, "lng")
	if latErr != nil {
		errs = append(errs, *latErr)
	}
	if lngErr != nil {
		errs = append(errs, *lngErr)
	}
	if len(errs) > 0 {
		return geo.Coordinate{}, false, errs
	}

	switch {
	case !hasLat && !hasLng:
		return geo.Coordinate{}, false, nil
	case !hasLat:
		return geo.Coordinate{}, false, []models.FieldError{{Field: "lat", Message: "is required with lng", Code: "REQUIRED"}}
	case !hasLng:
		return geo.Coordinate{}, false, []models.FieldError{{Field: "lng", Message: "is required with lat", Code: "REQUIRED"}}
	}

	c = geo.Coordinate{Lat: lat, Lng: lng}
	return c, true, coordinateErrors(c)
}

// bodyCoordinate is queryCoordinate for optional JSON fields.
func bodyCoordinate(lat, lng *float64) (geo.Coordinate, bool, []models.FieldError) {
	switch {
	case lat == nil && lng == nil:
		return geo.Coordinate{}, false, nil
	case lat == nil:
		return geo.Coordinate{}, false, []models.FieldError{{Field: "lat", Message: "is required with lng", Code: "REQUIRED"}}
	case lng == nil:
		return geo.Coordinate{}, false, []models.FieldError{{Field: "lng", Message: "is required with lat", Code: "REQUIRED"}}
	}
	c := geo.Coordinate{Lat: *lat, Lng: *lng}
	return c, true, coordinateErrors(c)
}

func coordinateErrors(c geo.Coordinate) []models.FieldError {
	err := c.Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, geo.ErrInvalidLatitude):
		return []models.FieldError{{Field: "lat", Message: err.Error(), Code: "OUT_OF_RANGE"}}
	default:
		return []models.FieldError{{Field: "lng", Message: err.Error(), Code: "OUT_OF_RANGE"}}
	}
}

// locate returns the center for a city request: the explicit coordinate
// when given, otherwise the best resolver match for the name.
func locate(ctx context.Context, resolver CityResolver, name string, c geo.Coordinate, found bool) (string, geo.Coordinate, error) {
	if found {
		return name, c, nil
	}
	if resolver == nil {
		return "", geo.Coordinate{}, errCoordinateRequired
	}
	m, err := resolver.Resolve(ctx, name)
	if err != nil {
		return "", geo.Coordinate{}, err
	}
	return m.Name, m.Coordinate, nil
}

var errCoordinateRequired = errors.New("lat and lng are required")

// writeError maps err to a problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errCoordinateRequired) {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "lat", Message: "is required", Code: "REQUIRED"},
			{Field: "lng", Message: "is required", Code: "REQUIRED"},
		})
		return
	}
	response.FromError(w, r, err)
}
