package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varunkainth/airpollutionmap/internal/api/middleware"
)

// serveID runs a request with the given X-Request-Id through RequestID and
// returns the id seen by the handler and the one echoed in the response.
func serveID(t *testing.T, incoming string) (inContext, echoed string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inContext = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if incoming != "" {
		req.Header.Set("X-Request-Id", incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return inContext, rec.Header().Get("X-Request-Id")
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"missing", "", false},
		{"client id", "existing_request_id", true},
		{"client uuid", "3f2b8c1e-9d4a-4f6e-8b7c-1a2b3c4d5e6f", true},
		{"oversized", strings.Repeat("x", 65), false},
		{"header injection", "abc\r\nSet-Cookie: x=1", false},
		{"spaces", "two words", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inContext, echoed := serveID(t, tt.incoming)

			assert.Equal(t, inContext, echoed)
			if tt.keep {
				assert.Equal(t, tt.incoming, echoed)
				return
			}
			assert.True(t, strings.HasPrefix(echoed, "req_"), echoed)
			assert.Len(t, echoed, len("req_")+20)
		})
	}
}

func TestRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		_, id := serveID(t, "")
		assert.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}
