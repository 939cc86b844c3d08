package middleware

import (
	"net/http"
	"strings"

	"github.com/varunkainth/airpollutionmap/internal/api/models"
)

// RequireJSON rejects request bodies that are not declared as JSON.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
				reject(w, r, models.KindUnsupportedMedia, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
