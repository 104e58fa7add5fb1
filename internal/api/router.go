// Package api assembles the HTTP surface: the public capture endpoint and
// the token-protected admin API.
package api

import (
	"net/http"

	mw "github.com/errsink/errsink/internal/api/middleware"
	"github.com/errsink/errsink/internal/api/response"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth           *mw.Auth
	LoginRateLimit *mw.RateLimit
	AdminRateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	IngestHandler http.HandlerFunc

	ListErrorsHandler  http.HandlerFunc
	GetErrorHandler    http.HandlerFunc
	DeleteErrorHandler http.HandlerFunc
	ClearErrorsHandler http.HandlerFunc
	ErrorStatsHandler  http.HandlerFunc

	ListPatternsHandler  http.HandlerFunc
	CreatePatternHandler http.HandlerFunc
	TogglePatternHandler http.HandlerFunc
	DeletePatternHandler http.HandlerFunc

	GetSettingsHandler    http.HandlerFunc
	UpdateSettingsHandler http.HandlerFunc

	LoginHistoryHandler http.HandlerFunc
	LoginStatsHandler   http.HandlerFunc
	TrackLoginHandler   http.HandlerFunc

	DiagnosticsHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Client IP resolution runs first so the request
	// logger can report the resolved address.
	r.Use(mw.ResolveClientIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Capture surface: shared token. Error intake is not behind the request
	// limiter; over-threshold submissions are dropped silently inside the
	// pipeline and the client always sees success.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireIngestToken)

		r.Post("/api/v1/errors", orNotImplemented(deps.IngestHandler))

		r.Group(func(r chi.Router) {
			r.Use(deps.LoginRateLimit.LimitByIP)
			r.Post("/api/v1/logins", orNotImplemented(deps.TrackLoginHandler))
		})
	})

	// Admin surface: bearer token, shared bucket limiting
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAdmin)
		r.Use(deps.AdminRateLimit.LimitShared("admin"))

		r.Get("/api/v1/errors", orNotImplemented(deps.ListErrorsHandler))
		r.Get("/api/v1/errors/stats", orNotImplemented(deps.ErrorStatsHandler))
		r.Get("/api/v1/errors/{id}", orNotImplemented(deps.GetErrorHandler))
		r.Delete("/api/v1/errors/{id}", orNotImplemented(deps.DeleteErrorHandler))
		r.Delete("/api/v1/errors", orNotImplemented(deps.ClearErrorsHandler))

		r.Get("/api/v1/ignore-patterns", orNotImplemented(deps.ListPatternsHandler))
		r.Post("/api/v1/ignore-patterns", orNotImplemented(deps.CreatePatternHandler))
		r.Post("/api/v1/ignore-patterns/{id}/toggle", orNotImplemented(deps.TogglePatternHandler))
		r.Delete("/api/v1/ignore-patterns/{id}", orNotImplemented(deps.DeletePatternHandler))

		r.Get("/api/v1/settings", orNotImplemented(deps.GetSettingsHandler))
		r.Put("/api/v1/settings", orNotImplemented(deps.UpdateSettingsHandler))

		r.Get("/api/v1/logins", orNotImplemented(deps.LoginHistoryHandler))
		r.Get("/api/v1/logins/stats", orNotImplemented(deps.LoginStatsHandler))

		r.Get("/api/v1/diagnostics", orNotImplemented(deps.DiagnosticsHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
