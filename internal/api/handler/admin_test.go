package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/errsink/errsink/internal/api/handler"
	"github.com/errsink/errsink/internal/store"
	"github.com/errsink/errsink/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockErrorStore struct {
	records []*models.ErrorRecord
	total   int64
	rec     *models.ErrorRecord
	stats   *models.ErrorStats

	gotFilter   store.ErrorFilter
	statsCalls  int
	deletedID   int64
	clearCalled bool
	err         error
}

func (m *mockErrorStore) GetErrors(_ context.Context, f store.ErrorFilter) ([]*models.ErrorRecord, int64, error) {
	m.gotFilter = f
	return m.records, m.total, m.err
}

func (m *mockErrorStore) GetError(_ context.Context, id int64) (*models.ErrorRecord, error) {
	if m.rec == nil {
		return nil, store.ErrNotFound
	}
	return m.rec, nil
}

func (m *mockErrorStore) GetErrorStats(_ context.Context) (*models.ErrorStats, error) {
	m.statsCalls++
	return m.stats, m.err
}

func (m *mockErrorStore) DeleteError(_ context.Context, id int64) error {
	m.deletedID = id
	return m.err
}

func (m *mockErrorStore) ClearErrors(_ context.Context) error {
	m.clearCalled = true
	return m.err
}

type memCache struct {
	data    map[string][]byte
	deleted []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memCache) DeletePrefix(_ context.Context, prefix string) error {
	m.deleted = append(m.deleted, prefix)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}
func (m *memCache) Ping(_ context.Context) error { return nil }
func (m *memCache) Close() error                 { return nil }

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// --- error browsing ---

func TestListErrors_FilterParsing(t *testing.T) {
	ms := &mockErrorStore{records: []*models.ErrorRecord{{ID: 1}}, total: 12}
	h := handler.NewListErrorsHandler(ms)

	req := httptest.NewRequest("GET",
		"/api/v1/errors?error_type=javascript_error&is_login_page=true&user_id=4&limit=5&offset=10&search=boom", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "javascript_error", ms.gotFilter.ErrorType)
	require.NotNil(t, ms.gotFilter.IsLoginPage)
	assert.True(t, *ms.gotFilter.IsLoginPage)
	assert.Equal(t, int64(4), *ms.gotFilter.UserID)
	assert.Equal(t, 5, ms.gotFilter.Limit)
	assert.Equal(t, 10, ms.gotFilter.Offset)

	meta := decodeData(t, w)["meta"].(map[string]any)
	assert.Equal(t, float64(12), meta["total"])
	assert.Equal(t, true, meta["has_next"])
}

func TestListErrors_LimitClamped(t *testing.T) {
	ms := &mockErrorStore{}
	h := handler.NewListErrorsHandler(ms)

	req := httptest.NewRequest("GET", "/api/v1/errors?limit=99999", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.MaxErrorPageSize, ms.gotFilter.Limit)
}

func TestListErrors_RejectsBadParams(t *testing.T) {
	h := handler.NewListErrorsHandler(&mockErrorStore{})

	for _, qs := range []string{"is_login_page=maybe", "user_id=-1", "from=yesterday", "limit=0", "offset=-2"} {
		req := httptest.NewRequest("GET", "/api/v1/errors?"+qs, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, qs)
	}
}

func TestGetError_NotFound(t *testing.T) {
	h := handler.NewGetErrorHandler(&mockErrorStore{})

	req := withURLParam(httptest.NewRequest("GET", "/api/v1/errors/5", nil), "id", "5")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteError_InvalidatesStatsCache(t *testing.T) {
	ms := &mockErrorStore{}
	mc := newMemCache()
	h := handler.NewDeleteErrorHandler(ms, mc)

	req := withURLParam(httptest.NewRequest("DELETE", "/api/v1/errors/7", nil), "id", "7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(7), ms.deletedID)
	assert.NotEmpty(t, mc.deleted)
}

func TestErrorStats_CacheMissThenHit(t *testing.T) {
	ms := &mockErrorStore{stats: &models.ErrorStats{Total: 42}}
	mc := newMemCache()
	h := handler.NewErrorStatsHandler(ms, mc)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/api/v1/errors/stats", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)["data"].(map[string]any)
		assert.Equal(t, float64(42), data["total"])
	}
	assert.Equal(t, 1, ms.statsCalls, "second request must come from cache")
}

// --- ignore patterns ---

type mockPatternStore struct {
	patterns []*models.IgnorePattern
	added    *models.IgnorePattern
	toggled  bool
	err      error
}

func (m *mockPatternStore) ListIgnorePatterns(_ context.Context, _ bool) ([]*models.IgnorePattern, error) {
	return m.patterns, m.err
}
func (m *mockPatternStore) AddIgnorePattern(_ context.Context, p *models.IgnorePattern) error {
	m.added = p
	return m.err
}
func (m *mockPatternStore) ToggleIgnorePattern(_ context.Context, _ int64) (bool, error) {
	return m.toggled, m.err
}
func (m *mockPatternStore) DeleteIgnorePattern(_ context.Context, _ int64) error { return m.err }

func postJSON(t *testing.T, h http.HandlerFunc, url string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", url, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreatePattern_Valid(t *testing.T) {
	ms := &mockPatternStore{}
	h := handler.NewCreatePatternHandler(ms)

	w := postJSON(t, h, "/api/v1/ignore-patterns", map[string]any{
		"pattern_type":  "message_contains",
		"pattern_value": "ResizeObserver",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, ms.added)
	assert.True(t, ms.added.IsActive)
}

func TestCreatePattern_RejectsUnknownType(t *testing.T) {
	h := handler.NewCreatePatternHandler(&mockPatternStore{})

	w := postJSON(t, h, "/api/v1/ignore-patterns", map[string]any{
		"pattern_type":  "fuzzy",
		"pattern_value": "x",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePattern_RejectsUnsafeRegex(t *testing.T) {
	ms := &mockPatternStore{}
	h := handler.NewCreatePatternHandler(ms)

	w := postJSON(t, h, "/api/v1/ignore-patterns", map[string]any{
		"pattern_type":  "regex",
		"pattern_value": "(a+)+",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, ms.added)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UNSAFE_PATTERN", body["error"].(map[string]any)["code"])
}

func TestTogglePattern_ReturnsNewState(t *testing.T) {
	h := handler.NewTogglePatternHandler(&mockPatternStore{toggled: true})

	req := withURLParam(httptest.NewRequest("POST", "/api/v1/ignore-patterns/3/toggle", nil), "id", "3")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["is_active"])
}

// --- settings ---

type mockSettingsStore struct {
	loaded models.Settings
	saved  *models.Settings
}

func (m *mockSettingsStore) LoadSettings(_ context.Context) (models.Settings, error) {
	return m.loaded, nil
}
func (m *mockSettingsStore) SaveSettings(_ context.Context, s models.Settings) error {
	m.saved = &s
	return nil
}

func TestUpdateSettings_ClampsOutOfRange(t *testing.T) {
	ms := &mockSettingsStore{}
	h := handler.NewUpdateSettingsHandler(ms)

	w := postJSON(t, h, "/api/v1/settings", map[string]any{
		"login_timeout_seconds": 900,
		"max_log_entries":       1,
		"auto_cleanup_days":     -5,
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, ms.saved)
	assert.Equal(t, models.LoginTimeoutMax, ms.saved.LoginTimeoutSeconds)
	assert.Equal(t, models.MaxLogEntriesMin, ms.saved.MaxLogEntries)
	assert.Equal(t, models.CleanupDaysMin, ms.saved.AutoCleanupDays)
}

func TestGetSettings(t *testing.T) {
	ms := &mockSettingsStore{loaded: models.DefaultSettings()}
	h := handler.NewGetSettingsHandler(ms)

	req := httptest.NewRequest("GET", "/api/v1/settings", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(models.LoginTimeoutDefault), data["login_timeout_seconds"])
}

// --- login stats ---

type mockLoginReader struct {
	stats      *models.LoginStats
	statsCalls int
}

func (m *mockLoginReader) GetLoginHistory(_ context.Context, _ store.LoginFilter) ([]*models.ErrorRecord, error) {
	return nil, nil
}

func (m *mockLoginReader) GetLoginStats(_ context.Context, _, _ time.Time) (*models.LoginStats, error) {
	m.statsCalls++
	return m.stats, nil
}

func TestLoginStats_DefaultRangeServedFromCache(t *testing.T) {
	ms := &mockLoginReader{stats: &models.LoginStats{SuccessfulLogins: 4, FailedLogins: 2}}
	c := newMemCache()
	h := handler.NewLoginStatsHandler(ms, c)

	// The implicit trailing-30-day window keys on a fixed cache entry, so
	// back-to-back calls must not recompute even though "now" moved.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/api/v1/logins/stats", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, ms.statsCalls, "second default-range request must come from cache")

	// An explicit range gets its own key and recomputes.
	req := httptest.NewRequest("GET", "/api/v1/logins/stats?from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, ms.statsCalls)
}

// --- login tracking ---

type mockLoginTracker struct {
	logins  int
	failed  int
	lastErr error
}

func (m *mockLoginTracker) TrackLogin(_ context.Context, _ int64, _, _ string) error {
	m.logins++
	return m.lastErr
}
func (m *mockLoginTracker) TrackFailedLogin(_ context.Context, _, _ string, _ *int64, _ bool) error {
	m.failed++
	return m.lastErr
}

func TestTrackLogin_Events(t *testing.T) {
	mt := &mockLoginTracker{}
	h := handler.NewTrackLoginHandler(mt)

	w := postJSON(t, h, "/api/v1/logins", map[string]any{"event": "login", "user_id": 5, "username": "alice"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, mt.logins)

	w = postJSON(t, h, "/api/v1/logins", map[string]any{"event": "login_failed", "username": "ghost"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, mt.failed)
}

func TestTrackLogin_RejectsBadEvents(t *testing.T) {
	mt := &mockLoginTracker{}
	h := handler.NewTrackLoginHandler(mt)

	w := postJSON(t, h, "/api/v1/logins", map[string]any{"event": "logout"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h, "/api/v1/logins", map[string]any{"event": "login"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "login without user_id")
	assert.Zero(t, mt.logins)
}
