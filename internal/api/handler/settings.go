package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/errsink/errsink/internal/api/response"
	"github.com/errsink/errsink/pkg/models"
)

// SettingsStore persists the runtime configuration document.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) error
}

// NewGetSettingsHandler returns the handler for GET /api/v1/settings.
func NewGetSettingsHandler(s SettingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := s.LoadSettings(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to load settings", nil)
			return
		}
		response.JSON(w, settings)
	}
}

// NewUpdateSettingsHandler returns the handler for PUT /api/v1/settings.
// Submitted values are clamped into their valid ranges rather than rejected.
func NewUpdateSettingsHandler(s SettingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var settings models.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		settings.Clamp()
		if err := s.SaveSettings(r.Context(), settings); err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to save settings", nil)
			return
		}
		response.JSON(w, settings)
	}
}
