package handlers

import (
	"net/http"
	"slices"

	"github.com/pratyush314/acquisitions/internal/token"
)

// RequireAuth resolves the caller's identity from the session cookie and
// rejects the request with 401 when the cookie is absent or the token does
// not verify. On success the identity is attached to the request context.
func RequireAuth(signer *token.Signer, cookies SessionCookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := cookies.Read(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "No authentication token provided")
				return
			}

			claims, err := signer.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid authentication token")
				return
			}

			identity, err := identityFromClaims(claims)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole gates a route by role. An empty role set admits any
// authenticated identity; a request with no resolved identity is rejected
// with 401 regardless.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}

			if len(roles) > 0 && !slices.Contains(roles, identity.Role) {
				writeError(w, http.StatusForbidden, "Forbidden", "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
