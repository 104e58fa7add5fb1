package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/errsink/errsink/internal/api/response"
	"github.com/errsink/errsink/internal/cache"
	"github.com/errsink/errsink/internal/store"
	"github.com/errsink/errsink/pkg/models"
	"github.com/go-chi/chi/v5"
)

// ErrorReader serves the admin error browsing surface.
type ErrorReader interface {
	GetErrors(ctx context.Context, filter store.ErrorFilter) ([]*models.ErrorRecord, int64, error)
	GetError(ctx context.Context, id int64) (*models.ErrorRecord, error)
	GetErrorStats(ctx context.Context) (*models.ErrorStats, error)
}

// ErrorWriter serves the destructive admin operations.
type ErrorWriter interface {
	DeleteError(ctx context.Context, id int64) error
	ClearErrors(ctx context.Context) error
}

// NewListErrorsHandler returns the handler for GET /api/v1/errors.
func NewListErrorsHandler(s ErrorReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseErrorFilter(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		records, total, err := s.GetErrors(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to load error records", nil)
			return
		}
		if records == nil {
			records = []*models.ErrorRecord{}
		}

		response.Collection(w, records, response.PaginationMeta{
			Limit:   filter.Limit,
			Offset:  filter.Offset,
			Total:   total,
			HasNext: int64(filter.Offset+len(records)) < total,
		})
	}
}

// NewGetErrorHandler returns the handler for GET /api/v1/errors/{id}.
func NewGetErrorHandler(s ErrorReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid error id", nil)
			return
		}

		rec, err := s.GetError(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error record not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to load error record", nil)
			return
		}
		response.JSON(w, rec)
	}
}

// NewDeleteErrorHandler returns the handler for DELETE /api/v1/errors/{id}.
// Deleting invalidates cached aggregates.
func NewDeleteErrorHandler(s ErrorWriter, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid error id", nil)
			return
		}

		if err := s.DeleteError(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error record not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to delete error record", nil)
			return
		}
		invalidateStats(r.Context(), c)
		response.NoContent(w)
	}
}

// NewClearErrorsHandler returns the handler for DELETE /api/v1/errors.
func NewClearErrorsHandler(s ErrorWriter, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ClearErrors(r.Context()); err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to clear error records", nil)
			return
		}
		invalidateStats(r.Context(), c)
		response.NoContent(w)
	}
}

// NewErrorStatsHandler returns the handler for GET /api/v1/errors/stats.
// Aggregates are cached; a miss recomputes and refills.
func NewErrorStatsHandler(s ErrorReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := cache.ErrorStatsKey()
		if raw, ok, err := c.Get(r.Context(), key); err == nil && ok {
			var stats models.ErrorStats
			if json.Unmarshal(raw, &stats) == nil {
				response.JSON(w, &stats)
				return
			}
		}

		stats, err := s.GetErrorStats(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to compute error statistics", nil)
			return
		}

		if raw, err := json.Marshal(stats); err == nil {
			if err := c.Set(r.Context(), key, raw, cache.ErrorStatsTTL); err != nil {
				slog.Warn("stats cache write failed", "error", err)
			}
		}
		response.JSON(w, stats)
	}
}

func invalidateStats(ctx context.Context, c cache.Cache) {
	for _, prefix := range cache.StatsPrefixes() {
		if err := c.DeletePrefix(ctx, prefix); err != nil {
			slog.Warn("stats cache invalidation failed", "prefix", prefix, "error", err)
		}
	}
}

func parseErrorFilter(r *http.Request) (store.ErrorFilter, error) {
	q := r.URL.Query()
	filter := store.ErrorFilter{
		ErrorType: q.Get("error_type"),
		Search:    q.Get("search"),
		OrderBy:   q.Get("order_by"),
		Order:     q.Get("order"),
		Limit:     50,
	}

	if v := q.Get("is_login_page"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("is_login_page must be a boolean")
		}
		filter.IsLoginPage = &b
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, errors.New("user_id must be a positive integer")
		}
		filter.UserID = &id
	}
	if v := q.Get("associated_user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, errors.New("associated_user_id must be a positive integer")
		}
		filter.AssociatedUserID = &id
	}
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("from must be a valid RFC3339 timestamp")
		}
		filter.DateFrom = ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("to must be a valid RFC3339 timestamp")
		}
		filter.DateTo = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		if n > store.MaxErrorPageSize {
			n = store.MaxErrorPageSize
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}
