package handler

import (
	"context"
	"net/http"

	"github.com/errsink/errsink/internal/api/response"
)

// Pinger reports backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns the handler for GET /api/v1/health. The database
// is required; the cache is reported but never fails the check.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbStatus := "ok"
		if err := db.Ping(r.Context()); err != nil {
			dbStatus = "unreachable"
		}
		cacheStatus := "ok"
		if err := cache.Ping(r.Context()); err != nil {
			cacheStatus = "unreachable"
		}

		body := map[string]any{
			"status":   "ok",
			"database": dbStatus,
			"cache":    cacheStatus,
		}
		if dbStatus != "ok" {
			body["status"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable,
				"DEGRADED", "Database is unreachable", body)
			return
		}
		response.JSON(w, body)
	}
}
