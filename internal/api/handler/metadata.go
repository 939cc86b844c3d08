package handler

import (
	"net/http"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/api/models"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// AQICategories handles GET /v1/metadata/aqi-categories.
func (h *MetadataHandler) AQICategories(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.AQICategories{Items: airquality.Categories()})
}
