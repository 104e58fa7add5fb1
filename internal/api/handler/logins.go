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
	"github.com/errsink/errsink/internal/ingest"
	"github.com/errsink/errsink/internal/store"
	"github.com/errsink/errsink/pkg/models"
)

// LoginReader serves the login auditing surface.
type LoginReader interface {
	GetLoginHistory(ctx context.Context, filter store.LoginFilter) ([]*models.ErrorRecord, error)
	GetLoginStats(ctx context.Context, from, to time.Time) (*models.LoginStats, error)
}

// LoginTracker records login outcomes reported by the protected
// application.
type LoginTracker interface {
	TrackLogin(ctx context.Context, userID int64, username, ip string) error
	TrackFailedLogin(ctx context.Context, username, ip string, userID *int64, userExists bool) error
}

// NewLoginHistoryHandler returns the handler for GET /api/v1/logins.
func NewLoginHistoryHandler(s LoginReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseLoginFilter(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		records, err := s.GetLoginHistory(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to load login history", nil)
			return
		}
		if records == nil {
			records = []*models.ErrorRecord{}
		}
		response.JSON(w, records)
	}
}

// NewLoginStatsHandler returns the handler for GET /api/v1/logins/stats.
// Results are cached per date range.
func NewLoginStatsHandler(s LoginReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := parseDateRange(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		key := cache.LoginStatsKey(from, to)
		if r.URL.Query().Get("from") == "" && r.URL.Query().Get("to") == "" {
			key = cache.LoginStatsDefaultKey()
		}
		if raw, ok, err := c.Get(r.Context(), key); err == nil && ok {
			var stats models.LoginStats
			if json.Unmarshal(raw, &stats) == nil {
				response.JSON(w, &stats)
				return
			}
		}

		stats, err := s.GetLoginStats(r.Context(), from, to)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to compute login statistics", nil)
			return
		}

		if raw, err := json.Marshal(stats); err == nil {
			if err := c.Set(r.Context(), key, raw, cache.LoginStatsTTL); err != nil {
				slog.Warn("login stats cache write failed", "error", err)
			}
		}
		response.JSON(w, stats)
	}
}

// NewTrackLoginHandler returns the handler for POST /api/v1/logins. The
// protected application reports login outcomes here.
func NewTrackLoginHandler(svc LoginTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Event      string `json:"event"`
			UserID     *int64 `json:"user_id"`
			Username   string `json:"username"`
			UserExists bool   `json:"user_exists"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		ip := ingest.ClientIP(r)
		switch req.Event {
		case "login":
			if req.UserID == nil || *req.UserID <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"user_id is required for login events", nil)
				return
			}
			if err := svc.TrackLogin(r.Context(), *req.UserID, req.Username, ip); err != nil {
				trackError(w, err)
				return
			}
		case "login_failed":
			if err := svc.TrackFailedLogin(r.Context(), req.Username, ip, req.UserID, req.UserExists); err != nil {
				trackError(w, err)
				return
			}
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"event must be \"login\" or \"login_failed\"", nil)
			return
		}
		response.Created(w, map[string]any{"status": "tracked"})
	}
}

func trackError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrValidation) {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if errors.Is(err, ingest.ErrStorage) {
		response.Error(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), nil)
		return
	}
	response.Error(w, http.StatusInternalServerError,
		"INTERNAL_ERROR", "Failed to track login event", nil)
}

func parseLoginFilter(r *http.Request) (store.LoginFilter, error) {
	q := r.URL.Query()
	filter := store.LoginFilter{
		IPAddress: q.Get("ip"),
		Limit:     50,
	}

	switch q.Get("outcome") {
	case "":
	case "success":
		filter.SuccessOnly = true
	case "failed":
		filter.FailedOnly = true
	default:
		return filter, errors.New("outcome must be \"success\" or \"failed\"")
	}

	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, errors.New("user_id must be a positive integer")
		}
		filter.UserID = &id
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
		if n > store.MaxLoginPageSize {
			n = store.MaxLoginPageSize
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

// parseDateRange defaults to the trailing 30 days.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, errors.New("from must be a valid RFC3339 timestamp")
		}
		from = ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, errors.New("to must be a valid RFC3339 timestamp")
		}
		to = ts
	}
	if to.Before(from) {
		return from, to, errors.New("to must not precede from")
	}
	return from, to, nil
}
