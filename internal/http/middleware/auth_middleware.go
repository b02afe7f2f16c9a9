package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/http/response"
	"github.com/hostbridge/hostbridge/internal/service"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware authenticates the bearer token against the session
// store. A syntactically valid token is not enough: the server-side
// session row must still exist, so revocation takes effect on the
// next request.
func AuthMiddleware(auth service.AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Verify(r.Context(), BearerToken(r))
			if err != nil {
				switch {
				case errors.Is(err, service.ErrMissingCredential),
					errors.Is(err, service.ErrInvalidCredential),
					errors.Is(err, service.ErrExpiredOrRevoked):
					response.AuthError(w, http.StatusUnauthorized, err.Error())
				default:
					response.AuthError(w, http.StatusInternalServerError, "authentication failed")
				}
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the credential from the Authorization header.
// Absence is reported as an empty string, not an error; the service
// layer owns the missing-credential distinction.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*domain.User)
	return u, ok
}
