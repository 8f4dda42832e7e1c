// Package response writes JSON bodies and RFC7807 problems for the API.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/wlocate/wlocate/internal/api/middleware"
	"github.com/wlocate/wlocate/internal/api/models"
)

// JSON writes data with status, echoing the request ID. A nil data writes
// no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	h := w.Header()
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set("X-Request-Id", id)
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// BadRequest writes a 400 listing the rejected fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errs))
}

func writer(newProblem func(traceID, detail string) *models.Problem) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, detail string) {
		Error(w, r, newProblem(middleware.GetRequestID(r.Context()), detail))
	}
}

// Problem writers keyed to the request ID carried in the context.
var (
	Unauthorized = writer(models.NewUnauthorized)
	NotFound     = writer(models.NewNotFound)
	// BssidNotFound is written when no queried access point has a position.
	BssidNotFound      = writer(models.NewBssidNotFound)
	InternalError      = writer(models.NewInternalError)
	BadGateway         = writer(models.NewBadGateway)
	ServiceUnavailable = writer(models.NewServiceUnavailable)
)
