package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/varunkainth/airpollutionmap/internal/api/models"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/internal/city"
)

// MaxSearchLimit caps the limit a client may request.
const MaxSearchLimit = 50

// CityHandler handles city search endpoints.
type CityHandler struct {
	resolver CityResolver
}

// NewCityHandler creates a new CityHandler.
func NewCityHandler(resolver CityResolver) *CityHandler {
	return &CityHandler{resolver: resolver}
}

// Search handles GET /v1/cities?q=&limit=.
func (h *CityHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		response.BadRequest(w, r, "q is required", []models.FieldError{
			{Field: "q", Message: "is required", Code: "REQUIRED"},
		})
		return
	}

	limit := city.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxSearchLimit {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be an integer between 1 and " + strconv.Itoa(MaxSearchLimit), Code: "OUT_OF_RANGE"},
			})
			return
		}
		limit = n
	}

	matches, err := h.resolver.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]models.CityMatch, len(matches))
	for i, m := range matches {
		items[i] = models.NewCityMatch(m)
	}

	response.JSON(w, r, http.StatusOK, models.CitySearch{
		Query: q,
		Items: items,
		Meta:  models.ListMeta{Limit: limit, Count: len(items)},
	})
}

// Resolve handles GET /v1/cities/resolve?q= - the best match or 404.
func (h *CityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		response.BadRequest(w, r, "q is required", []models.FieldError{
			{Field: "q", Message: "is required", Code: "REQUIRED"},
		})
		return
	}

	m, err := h.resolver.Resolve(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewCityMatch(*m))
}
