package middleware

import (
	"net/http"

	"github.com/varunkainth/airpollutionmap/internal/api/models"
)

// reject ends the request with a problem of the given kind.
func reject(w http.ResponseWriter, r *http.Request, kind models.ProblemKind, detail string) {
	kind.New(GetRequestID(r.Context()), detail).At(r.URL.Path).Write(w)
}
