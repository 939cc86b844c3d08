package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://airpollutionmap.dev/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation       = problemBase + "validation-error"
	ProblemTypeNotFound         = problemBase + "not-found"
	ProblemTypeTooManyRequests  = problemBase + "too-many-requests"
	ProblemTypeClientClosed     = problemBase + "client-closed-request"
	ProblemTypeInternal         = problemBase + "internal-error"
	ProblemTypeUnavailable      = problemBase + "provider-unavailable"
	ProblemTypeUnsupportedMedia = problemBase + "unsupported-media-type"
	ProblemTypeTLSRequired      = problemBase + "tls-required"
)

// StatusClientClosedRequest is the non-standard status for requests the
// client abandoned before a response was ready.
const StatusClientClosedRequest = 499

// ProblemKind fixes the type, title and status shared by every occurrence
// of one class of failure.
type ProblemKind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds the API emits.
var (
	KindValidation       = ProblemKind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindNotFound         = ProblemKind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindTooManyRequests  = ProblemKind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindClientClosed     = ProblemKind{ProblemTypeClientClosed, "Client closed request", StatusClientClosedRequest}
	KindInternal         = ProblemKind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	KindUnavailable      = ProblemKind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
	KindUnsupportedMedia = ProblemKind{ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType}
	KindTLSRequired      = ProblemKind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
)

// New returns an occurrence of k for the request identified by traceID.
func (k ProblemKind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// At sets the path the problem occurred at.
func (p *Problem) At(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches per-field validation failures.
func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// Write sends p with its own status. The trace id doubles as the
// X-Request-Id header.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p) //nolint:errcheck // headers already sent
}
