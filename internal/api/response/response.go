// Package response writes API responses. Every response carries the
// request's X-Request-Id, and failures are RFC 7807 problems.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/varunkainth/airpollutionmap/internal/api/middleware"
	"github.com/varunkainth/airpollutionmap/internal/api/models"
)

const (
	contentJSON    = "application/json"
	contentGeoJSON = "application/geo+json"
)

func write(w http.ResponseWriter, r *http.Request, status int, contentType, location string, body any) {
	h := w.Header()
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set("X-Request-Id", id)
	}
	if location != "" {
		h.Set("Location", location)
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	h.Set("Content-Type", contentType)
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // headers already sent
	}
}

// JSON writes body with the given status. A nil body leaves the response
// empty.
func JSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	write(w, r, status, contentJSON, "", body)
}

// GeoJSON writes a FeatureCollection or other GeoJSON document.
func GeoJSON(w http.ResponseWriter, r *http.Request, body any) {
	write(w, r, http.StatusOK, contentGeoJSON, "", body)
}

// Created writes a 201 pointing at the new resource.
func Created(w http.ResponseWriter, r *http.Request, location string, body any) {
	write(w, r, http.StatusCreated, contentJSON, location, body)
}

// Accepted writes a 202 pointing at where progress can be polled.
func Accepted(w http.ResponseWriter, r *http.Request, location string, body any) {
	write(w, r, http.StatusAccepted, contentJSON, location, body)
}

func NoContent(w http.ResponseWriter, r *http.Request) {
	write(w, r, http.StatusNoContent, "", "", nil)
}

// Problem writes an occurrence of kind for r.
func Problem(w http.ResponseWriter, r *http.Request, kind models.ProblemKind, detail string) {
	kind.New(middleware.GetRequestID(r.Context()), detail).At(r.URL.Path).Write(w)
}

// BadRequest writes a validation problem listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	models.KindValidation.New(middleware.GetRequestID(r.Context()), detail).
		At(r.URL.Path).
		WithErrors(errs).
		Write(w)
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindNotFound, detail)
}

// ClientClosed answers a request whose context was cancelled by the client.
// Nobody reads it; it exists so access logs record 499.
func ClientClosed(w http.ResponseWriter, r *http.Request) {
	Problem(w, r, models.KindClientClosed, "")
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindInternal, detail)
}

// ServiceUnavailable reports that the pollution provider could not serve
// the request.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindUnavailable, detail)
}
