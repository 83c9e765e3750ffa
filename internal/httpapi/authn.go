package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dipendra-mule/conducky-sub002/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// msgNotAuthenticated is the exact body unauthenticated requests receive,
// from the middleware as well as the role checks.
const msgNotAuthenticated = "Not authenticated"

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/auth/login",
	"/api/auth/register",
}

// withAuth resolves the bearer token into a user identity on the request
// context. Requests to public paths pass through untouched; everything else
// without a valid session is rejected before any handler runs.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}

		claims, err := a.sessions.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}

		ctx := auth.ContextWithUser(r.Context(), claims.Subject, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
