// Package ingest implements the server-side error submission pipeline:
// validation, sanitization, classification, enrichment, ignore-pattern
// evaluation, rate limiting, and persistence.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/errsink/errsink/internal/ignore"
	"github.com/errsink/errsink/internal/store"
	"github.com/errsink/errsink/pkg/models"
	"github.com/google/uuid"
)

// Sentinel errors for submission outcomes. ErrStorage carries the driver
// message so callers can surface it; it never carries a stack.
var (
	ErrValidation      = errors.New("validation failed")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrStorage         = errors.New("storage failure")
)

// Server-side abuse and correlation windows.
const (
	rateLimitWindow = time.Minute
	backfillWindow  = 30 * time.Minute
)

// RequestContext carries the request-scoped facts the pipeline needs,
// populated once at the HTTP boundary.
type RequestContext struct {
	ClientIP  string
	UserAgent string
	Referer   string
	UserID    *int64
}

// Outcome describes what happened to a submission.
type Outcome struct {
	Record      *models.ErrorRecord
	Ignored     bool
	IgnoredByID int64
	RateLimited bool
}

// Config tunes the pipeline.
type Config struct {
	MaxPayloadBytes    int64
	RateLimitPerMinute int
}

// Service is the ingestion pipeline.
type Service struct {
	store   store.Store
	matcher *ignore.Matcher
	cfg     Config
	logger  *slog.Logger
}

// NewService creates the ingestion service. A nil matcher gets the default
// evaluation order; a nil logger uses slog.Default.
func NewService(s store.Store, matcher *ignore.Matcher, cfg Config, logger *slog.Logger) *Service {
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 51200
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 10
	}
	return &Service{store: s, matcher: matcher, cfg: cfg, logger: logger}
}

// payload is the client-submitted candidate shape. Everything is optional
// except error_type and error_message.
type payload struct {
	ErrorType      string         `json:"error_type"`
	ErrorMessage   string         `json:"error_message"`
	ErrorSource    string         `json:"error_source"`
	ErrorLine      *int           `json:"error_line"`
	ErrorColumn    *int           `json:"error_column"`
	StackTrace     string         `json:"stack_trace"`
	PageURL        string         `json:"page_url"`
	SessionID      string         `json:"session_id"`
	IsLoginPage    *bool          `json:"is_login_page"`
	AdditionalData map[string]any `json:"additional_data"`
}

// Ingest runs one submission through the pipeline. Raw is the unparsed
// request body; reqCtx must already carry the resolved client address.
func (s *Service) Ingest(ctx context.Context, reqCtx RequestContext, raw []byte) (*Outcome, error) {
	if int64(len(raw)) > s.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(raw), s.cfg.MaxPayloadBytes)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no error data provided", ErrValidation)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid error data format", ErrValidation)
	}
	if p.ErrorType == "" || p.ErrorMessage == "" {
		return nil, fmt.Errorf("%w: error_type and error_message are required", ErrValidation)
	}

	rec := s.buildRecord(reqCtx, p)

	// Ignore patterns run before any row is written.
	patterns, err := s.store.ListIgnorePatterns(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load ignore patterns: %w", err)
	}
	if matched := s.matcher.Match(rec, patterns); matched != nil {
		if err := s.store.RecordIgnoreHit(ctx, matched.ID); err != nil {
			s.logger.Warn("record ignore hit failed", "pattern_id", matched.ID, "error", err)
		}
		return &Outcome{Record: rec, Ignored: true, IgnoredByID: matched.ID}, nil
	}

	// Back-fill the associated user from recent logins on the same IP.
	if userID, err := s.store.GetAssociatedUserByIP(ctx, rec.UserIP, backfillWindow); err != nil {
		s.logger.Warn("ip association lookup failed", "ip", rec.UserIP, "error", err)
	} else if userID != nil {
		rec.AssociatedUserID = userID
	}

	// Silent drop over the per-IP window; abusive clients get success so
	// they don't retry.
	count, err := s.store.CountRecentByIP(ctx, rec.UserIP, rateLimitWindow, s.cfg.RateLimitPerMinute)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if count > s.cfg.RateLimitPerMinute {
		return &Outcome{Record: rec, RateLimited: true}, nil
	}

	if err := s.store.InsertError(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.notifyIfCritical(rec)
	s.evictAfterInsert(ctx)

	return &Outcome{Record: rec}, nil
}

// evictAfterInsert runs the count-based eviction check that follows every
// insert; failures must not fail the submission that triggered them.
func (s *Service) evictAfterInsert(ctx context.Context) {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.logger.Warn("settings load for eviction failed", "error", err)
		return
	}
	if _, err := s.store.EvictOverLimit(ctx, settings.MaxLogEntries); err != nil {
		s.logger.Warn("eviction after insert failed", "error", err)
	}
}

// buildRecord sanitizes, classifies, and enriches a parsed payload.
func (s *Service) buildRecord(reqCtx RequestContext, p payload) *models.ErrorRecord {
	rec := &models.ErrorRecord{
		ErrorType:      ClassifyErrorType(SanitizeText(p.ErrorType, 50)),
		ErrorMessage:   SanitizeText(p.ErrorMessage, MaxMessageLen),
		ErrorSource:    SanitizeText(p.ErrorSource, MaxSourceLen),
		StackTrace:     RedactStack(p.StackTrace),
		UserAgent:      SanitizeText(reqCtx.UserAgent, 500),
		PageURL:        SanitizeText(p.PageURL, MaxSourceLen),
		UserIP:         reqCtx.ClientIP,
		UserID:         reqCtx.UserID,
		SessionID:      SanitizeText(p.SessionID, 255),
		AdditionalData: SanitizeAdditionalData(p.AdditionalData),
	}

	if p.ErrorLine != nil && *p.ErrorLine >= 0 {
		rec.ErrorLine = p.ErrorLine
	}
	if p.ErrorColumn != nil && *p.ErrorColumn >= 0 {
		rec.ErrorColumn = p.ErrorColumn
	}

	if rec.PageURL == "" {
		rec.PageURL = SanitizeText(reqCtx.Referer, MaxSourceLen)
	}
	if p.IsLoginPage != nil {
		rec.IsLoginPage = *p.IsLoginPage
	} else {
		rec.IsLoginPage = IsLoginPageURL(rec.PageURL)
	}
	if rec.SessionID == "" {
		rec.SessionID = "sess_" + uuid.NewString()
	}
	return rec
}

// notifyIfCritical emits the side-channel log line for critical records. It
// never blocks or fails the main response.
func (s *Service) notifyIfCritical(rec *models.ErrorRecord) {
	if !IsCritical(rec) {
		return
	}
	s.logger.Warn("critical error captured",
		"error_type", rec.ErrorType,
		"error_message", rec.ErrorMessage,
		"page_url", rec.PageURL,
		"user_ip", rec.UserIP,
	)
}

// TrackLogin records a successful login as a login event and refreshes the
// IP-to-user mapping used for later back-fill.
func (s *Service) TrackLogin(ctx context.Context, userID int64, username, ip string) error {
	if userID == 0 {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	rec := &models.ErrorRecord{
		ErrorType:    models.TypeLoginSuccess,
		ErrorMessage: fmt.Sprintf("User login: %s (ID: %d)", SanitizeText(username, 100), userID),
		UserID:       &userID,
		UserIP:       ip,
		IsLoginPage:  true,
		AdditionalData: map[string]any{
			"event":    "login",
			"username": SanitizeText(username, 100),
		},
	}
	if err := s.store.InsertError(ctx, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if ip != "" {
		if err := s.store.UpsertIPMapping(ctx, ip, userID); err != nil {
			s.logger.Warn("track login ip mapping failed", "error", err)
		}
	}
	s.evictAfterInsert(ctx)
	return nil
}

// TrackFailedLogin records a failed login attempt. When the username resolves
// to a real user the IP mapping is still refreshed, which lets later
// anonymous errors from that address be attributed.
func (s *Service) TrackFailedLogin(ctx context.Context, username, ip string, userID *int64, userExists bool) error {
	var errType, message string
	switch {
	case userExists:
		errType = models.TypeLoginFailedValidUser
		message = fmt.Sprintf("Failed login attempt for existing user: %s", SanitizeText(username, 100))
	case username != "":
		errType = models.TypeLoginFailedInvalidUser
		message = fmt.Sprintf("Failed login attempt for non-existent user: %s", SanitizeText(username, 100))
	default:
		errType = models.TypeLoginFailedEmpty
		message = "Failed login attempt with empty username"
	}

	rec := &models.ErrorRecord{
		ErrorType:    errType,
		ErrorMessage: message,
		UserID:       userID,
		UserIP:       ip,
		IsLoginPage:  true,
		AdditionalData: map[string]any{
			"event":                  "login_failed",
			"attempted_username":     SanitizeText(username, 100),
			"user_exists":            userExists,
			"authentication_failure": true,
		},
	}
	if err := s.store.InsertError(ctx, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if userID != nil && ip != "" {
		if err := s.store.UpsertIPMapping(ctx, ip, *userID); err != nil {
			s.logger.Warn("track failed login ip mapping failed", "error", err)
		}
	}
	s.evictAfterInsert(ctx)
	return nil
}
