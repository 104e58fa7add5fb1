package middleware

import (
	"net/http"
	"strconv"

	"github.com/errsink/errsink/internal/ingest"
)

// ResolveClientIP derives the real client address from proxy headers once
// per request and stores it in the context. It also picks up the optional
// X-User-ID header set by authenticated capture clients.
func ResolveClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetClientIP(r.Context(), ingest.ClientIP(r))
		if raw := r.Header.Get("X-User-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				ctx = SetUserID(ctx, id)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
