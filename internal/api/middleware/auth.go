package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/errsink/errsink/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

// Auth guards the two surfaces: a shared token for capture clients and a
// bcrypt-hashed bearer token for the admin API.
type Auth struct {
	ingestToken    string
	adminTokenHash string
}

// NewAuth creates the auth middleware. An empty ingestToken leaves the
// capture endpoint open; an empty adminTokenHash locks the admin API shut.
func NewAuth(ingestToken, adminTokenHash string) *Auth {
	return &Auth{ingestToken: ingestToken, adminTokenHash: adminTokenHash}
}

// RequireIngestToken checks the shared capture token when one is
// configured. Clients send it as a Bearer token or X-Errsink-Token header.
func (a *Auth) RequireIngestToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.ingestToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearerToken(r)
		if token == "" {
			token = r.Header.Get("X-Errsink-Token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.ingestToken)) != 1 {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid capture token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin validates the admin bearer token against the configured
// bcrypt hash.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.adminTokenHash == "" {
			response.Error(w, http.StatusForbidden,
				"ADMIN_DISABLED", "Admin API is not configured", nil)
			return
		}
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(a.adminTokenHash), []byte(token)) != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
