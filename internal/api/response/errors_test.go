package response_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/api/models"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/internal/viewport"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{
			name:   "provider failure",
			err:    &airquality.NetworkError{Op: "openweathermap.FetchPollution", Err: errors.New("dial tcp: timeout")},
			status: http.StatusServiceUnavailable,
			typ:    models.ProblemTypeUnavailable,
		},
		{
			name:   "city not found",
			err:    fmt.Errorf("resolve %q: %w", "Atlantis", city.ErrCityNotFound),
			status: http.StatusNotFound,
			typ:    models.ProblemTypeNotFound,
		},
		{
			name:   "session not found",
			err:    viewport.ErrSessionNotFound,
			status: http.StatusNotFound,
			typ:    models.ProblemTypeNotFound,
		},
		{
			name:   "invalid coordinate",
			err:    fmt.Errorf("center: %w", geo.ErrInvalidLatitude),
			status: http.StatusBadRequest,
			typ:    models.ProblemTypeValidation,
		},
		{
			name:   "empty query",
			err:    city.ErrEmptyQuery,
			status: http.StatusBadRequest,
			typ:    models.ProblemTypeValidation,
		},
		{
			name:   "cancelled",
			err:    fmt.Errorf("fetch: %w", airquality.ErrCancelled),
			status: models.StatusClientClosedRequest,
			typ:    models.ProblemTypeClientClosed,
		},
		{
			name:   "context cancelled",
			err:    context.Canceled,
			status: models.StatusClientClosedRequest,
			typ:    models.ProblemTypeClientClosed,
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			typ:    models.ProblemTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/air-quality/city", http.NoBody)
			rec := httptest.NewRecorder()

			response.FromError(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.typ)
		})
	}
}

func TestFromError_HidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody)
	rec := httptest.NewRecorder()

	response.FromError(rec, req, errors.New("pq: password authentication failed"))

	assert.NotContains(t, rec.Body.String(), "password")
}
