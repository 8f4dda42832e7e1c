package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemTypeBase = "https://wlocate.dev/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation       = problemTypeBase + "validation-error"
	ProblemTypeUnauthorized     = problemTypeBase + "unauthorized"
	ProblemTypeNotFound         = problemTypeBase + "not-found"
	ProblemTypeBssidNotFound    = problemTypeBase + "bssid-not-found"
	ProblemTypeUnsupportedMedia = problemTypeBase + "unsupported-media-type"
	ProblemTypeTooManyRequests  = problemTypeBase + "too-many-requests"
	ProblemTypeInternal         = problemTypeBase + "internal-error"
	ProblemTypeUpstream         = problemTypeBase + "upstream-error"
	ProblemTypeUnavailable      = problemTypeBase + "service-unavailable"
	ProblemTypeTLSRequired      = problemTypeBase + "tls-required"
)

// NewProblem creates a Problem without detail.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{Type: problemType, Title: title, Status: status, TraceID: traceID}
}

func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// Write sends the problem, echoing the trace ID as X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// problemKind binds a type URI to its title and status.
type problemKind struct {
	typ    string
	title  string
	status int
}

func (k problemKind) new(traceID, detail string) *Problem {
	return NewProblem(k.typ, k.title, k.status, traceID).WithDetail(detail)
}

var (
	kindValidation   = problemKind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	kindUnauthorized = problemKind{ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized}
	kindTLSRequired  = problemKind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	kindNotFound     = problemKind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	kindBssid        = problemKind{ProblemTypeBssidNotFound, "BSSID not found", http.StatusNotFound}
	kindMedia        = problemKind{ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType}
	kindRateLimited  = problemKind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	kindInternal     = problemKind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	kindUpstream     = problemKind{ProblemTypeUpstream, "Upstream lookup failed", http.StatusBadGateway}
	kindUnavailable  = problemKind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

// NewBadRequest creates a 400 problem carrying per-field errors.
func NewBadRequest(traceID, detail string, errs []FieldError) *Problem {
	return kindValidation.new(traceID, detail).WithErrors(errs)
}

func NewUnauthorized(traceID, detail string) *Problem { return kindUnauthorized.new(traceID, detail) }

// NewTLSRequired creates a 403 problem for plaintext requests.
func NewTLSRequired(traceID, detail string) *Problem { return kindTLSRequired.new(traceID, detail) }

func NewNotFound(traceID, detail string) *Problem { return kindNotFound.new(traceID, detail) }

// NewBssidNotFound creates a 404 for an access point without a known position.
func NewBssidNotFound(traceID, detail string) *Problem { return kindBssid.new(traceID, detail) }

func NewUnsupportedMediaType(traceID, detail string) *Problem { return kindMedia.new(traceID, detail) }

func NewTooManyRequests(traceID, detail string) *Problem { return kindRateLimited.new(traceID, detail) }

func NewInternalError(traceID, detail string) *Problem { return kindInternal.new(traceID, detail) }

// NewBadGateway creates a 502 for a failed upstream lookup.
func NewBadGateway(traceID, detail string) *Problem { return kindUpstream.new(traceID, detail) }

func NewServiceUnavailable(traceID, detail string) *Problem { return kindUnavailable.new(traceID, detail) }
