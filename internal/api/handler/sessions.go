package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/api/models"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/internal/viewport"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// SessionManager owns the map sessions.
type SessionManager interface {
	Create(ctx context.Context, city string, center geo.Coordinate, box *geo.BoundingBox) (viewport.Snapshot, error)
	ChangeCity(ctx context.Context, id, city string, center geo.Coordinate) (viewport.Snapshot, error)
	UpdateViewport(id string, box geo.BoundingBox) error
	Points(id string) (viewport.Snapshot, error)
	Pending(id string) bool
	Delete(id string) error
}

// SessionHandler handles map session endpoints.
type SessionHandler struct {
	sessions SessionManager
	resolver CityResolver
}

// NewSessionHandler creates a new SessionHandler. resolver may be nil, in
// which case lat and lng are required.
func NewSessionHandler(sessions SessionManager, resolver CityResolver) *SessionHandler {
	return &SessionHandler{sessions: sessions, resolver: resolver}
}

// Create handles POST /v1/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateSessionRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	name, center, ok := h.target(w, r, input.City, input.Lat, input.Lng)
	if !ok {
		return
	}

	var box *geo.BoundingBox
	if input.Viewport != nil {
		b := input.Viewport.Box()
		if err := b.Validate(); err != nil {
			response.BadRequest(w, r, "invalid viewport", []models.FieldError{
				{Field: "viewport", Message: err.Error(), Code: "INVALID_BOX"},
			})
			return
		}
		box = &b
	}

	snap, err := h.sessions.Create(r.Context(), name, center, box)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, r, fmt.Sprintf("/v1/sessions/%s", snap.ID), models.NewSession(snap))
}

// ChangeCity handles PUT /v1/sessions/{id}/city.
func (h *SessionHandler) ChangeCity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input models.ChangeCityRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	name, center, ok := h.target(w, r, input.City, input.Lat, input.Lng)
	if !ok {
		return
	}

	snap, err := h.sessions.ChangeCity(r.Context(), id, name, center)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewSession(snap))
}

// UpdateViewport handles PUT /v1/sessions/{id}/viewport. Regeneration is
// debounced, so the response only acknowledges the change.
func (h *SessionHandler) UpdateViewport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input models.Viewport
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	box := input.Box()
	if err := box.Validate(); err != nil {
		response.BadRequest(w, r, "invalid viewport", []models.FieldError{
			{Field: "viewport", Message: err.Error(), Code: "INVALID_BOX"},
		})
		return
	}

	if err := h.sessions.UpdateViewport(id, box); err != nil {
		writeError(w, r, err)
		return
	}

	response.Accepted(w, r, fmt.Sprintf("/v1/sessions/%s/points", id), models.ViewportAccepted{
		SessionID: id,
		Viewport:  input,
		Pending:   h.sessions.Pending(id),
	})
}

// Points handles GET /v1/sessions/{id}/points. With ?format=geojson the
// points are returned as a GeoJSON FeatureCollection.
func (h *SessionHandler) Points(w http.ResponseWriter, r *http.Request) {
	format, ok := queryFormat(w, r)
	if !ok {
		return
	}

	snap, err := h.sessions.Points(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if format == formatGeoJSON {
		response.GeoJSON(w, r, airquality.FeatureCollection(snap.Points))
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewSession(snap))
}

// Delete handles DELETE /v1/sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

func (h *SessionHandler) target(w http.ResponseWriter, r *http.Request, name string, lat, lng *float64) (string, geo.Coordinate, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		response.BadRequest(w, r, "city is required", []models.FieldError{
			{Field: "city", Message: "is required", Code: "REQUIRED"},
		})
		return "", geo.Coordinate{}, false
	}

	c, found, errs := bodyCoordinate(lat, lng)
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
