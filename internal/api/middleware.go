// Package api implements the mind-map REST API using chi.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/starford/mindmaps/internal/apperr"
)

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

type ctxKey struct{}

// UserID returns the authenticated user id attached to ctx, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithUserID attaches a user id to ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// AuthMiddleware resolves an "Authorization: Bearer <token>" header and
// attaches the user id to the request context. Requests without a header,
// or with a token that does not resolve, continue anonymously; RequireUser
// rejects them where a user is needed.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			id, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
				r = r.WithContext(WithUserID(r.Context(), id))
			case errors.Is(err, apperr.ErrUnauthenticated):
			default:
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}
