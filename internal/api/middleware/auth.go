package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wlocate/wlocate/internal/api/models"
	"github.com/wlocate/wlocate/internal/auth"
)

// clientIDKey is the context key for the authenticated client ID.
type clientIDKey struct{}

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// Auth creates middleware that requires a valid JWT bearer token. The token
// subject is stored in the context as the client ID.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, detail := bearerToken(r.Header.Get("Authorization"))
			if detail != "" {
				writeUnauthorized(w, r, detail)
				return
			}

			clientID, err := validator.ValidateAccessToken(token)
			if err != nil {
				writeUnauthorized(w, r, rejection(err))
				return
			}

			ctx := context.WithValue(r.Context(), clientIDKey{}, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header value. On
// failure it returns a non-empty problem detail.
func bearerToken(header string) (token, detail string) {
	if header == "" {
		return "", "missing authorization header"
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "invalid authorization header format"
	}

	token = strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// rejection maps a validation error to the detail shown to the caller.
// Parser errors are not echoed.
func rejection(err error) string {
	switch {
	case errors.Is(err, auth.ErrAccessTokenExpired):
		return auth.ErrAccessTokenExpired.Error()
	case errors.Is(err, auth.ErrInvalidAccessToken):
		return auth.ErrInvalidAccessToken.Error()
	default:
		return "authentication failed"
	}
}

// writeUnauthorized is local to avoid an import cycle with the response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="wlocate"`)
	models.NewUnauthorized(GetRequestID(r.Context()), detail).WithInstance(r.URL.Path).Write(w)
}

// GetClientID returns the authenticated client ID, or "" for anonymous requests.
func GetClientID(ctx context.Context) string {
	if id, ok := ctx.Value(clientIDKey{}).(string); ok {
		return id
	}
	return ""
}
