package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/errsink/errsink/internal/api/response"
	"github.com/errsink/errsink/internal/ignore"
	"github.com/errsink/errsink/internal/store"
	"github.com/errsink/errsink/pkg/models"
	"github.com/go-chi/chi/v5"
)

// PatternStore manages suppression rules.
type PatternStore interface {
	ListIgnorePatterns(ctx context.Context, activeOnly bool) ([]*models.IgnorePattern, error)
	AddIgnorePattern(ctx context.Context, p *models.IgnorePattern) error
	ToggleIgnorePattern(ctx context.Context, id int64) (bool, error)
	DeleteIgnorePattern(ctx context.Context, id int64) error
}

// NewListPatternsHandler returns the handler for GET /api/v1/ignore-patterns.
func NewListPatternsHandler(s PatternStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("active") == "true"
		patterns, err := s.ListIgnorePatterns(r.Context(), activeOnly)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to load ignore patterns", nil)
			return
		}
		if patterns == nil {
			patterns = []*models.IgnorePattern{}
		}
		response.JSON(w, patterns)
	}
}

// NewCreatePatternHandler returns the handler for POST /api/v1/ignore-patterns.
// Regex patterns must pass the safety validator before being stored.
func NewCreatePatternHandler(s PatternStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PatternType  string `json:"pattern_type"`
			PatternValue string `json:"pattern_value"`
			Notes        string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.PatternType = strings.TrimSpace(req.PatternType)
		req.PatternValue = strings.TrimSpace(req.PatternValue)
		if !slices.Contains(models.ValidPatternTypes, req.PatternType) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Unknown pattern type", map[string]any{"valid_types": models.ValidPatternTypes})
			return
		}
		validate := ignore.ValidatePatternValue
		if req.PatternType == models.PatternRegex {
			validate = ignore.ValidateRegex
		}
		if err := validate(req.PatternValue); err != nil {
			response.Error(w, http.StatusBadRequest, "UNSAFE_PATTERN", err.Error(), nil)
			return
		}

		p := &models.IgnorePattern{
			PatternType:  req.PatternType,
			PatternValue: req.PatternValue,
			IsActive:     true,
			Notes:        strings.TrimSpace(req.Notes),
		}
		if err := s.AddIgnorePattern(r.Context(), p); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE_PATTERN",
					"An identical pattern already exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to create ignore pattern", nil)
			return
		}
		response.Created(w, p)
	}
}

// NewTogglePatternHandler returns the handler for
// POST /api/v1/ignore-patterns/{id}/toggle.
func NewTogglePatternHandler(s PatternStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid pattern id", nil)
			return
		}

		active, err := s.ToggleIgnorePattern(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Ignore pattern not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to toggle ignore pattern", nil)
			return
		}
		response.JSON(w, map[string]any{"id": id, "is_active": active})
	}
}

// NewDeletePatternHandler returns the handler for
// DELETE /api/v1/ignore-patterns/{id}.
func NewDeletePatternHandler(s PatternStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid pattern id", nil)
			return
		}

		if err := s.DeleteIgnorePattern(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Ignore pattern not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to delete ignore pattern", nil)
			return
		}
		response.NoContent(w)
	}
}
