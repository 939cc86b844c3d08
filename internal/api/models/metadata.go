package models

import "github.com/varunkainth/airpollutionmap/internal/airquality"

// AQICategories lists the AQI bands with their display metadata.
type AQICategories struct {
	Items []airquality.CategoryInfo `json:"items"`
}
