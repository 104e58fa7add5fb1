package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mw "github.com/errsink/errsink/internal/api/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock Cache ---

type mockCache struct {
	counter int64
	err     error
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (m *mockCache) DeletePrefix(_ context.Context, _ string) error                   { return nil }
func (m *mockCache) Ping(_ context.Context) error                                     { return nil }
func (m *mockCache) Close() error                                                     { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counter++
	return m.counter, nil
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func hashToken(t *testing.T, raw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// ========================================
// Ingest token tests
// ========================================

func TestIngestToken_OpenWhenUnconfigured(t *testing.T) {
	auth := mw.NewAuth("", "")
	handler := auth.RequireIngestToken(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestToken_RejectsMissing(t *testing.T) {
	auth := mw.NewAuth("secret-token", "")
	handler := auth.RequireIngestToken(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestIngestToken_RejectsWrong(t *testing.T) {
	auth := mw.NewAuth("secret-token", "")
	handler := auth.RequireIngestToken(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	req.Header.Set("Authorization", "Bearer not-it")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestToken_AcceptsBearer(t *testing.T) {
	auth := mw.NewAuth("secret-token", "")
	handler := auth.RequireIngestToken(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestToken_AcceptsCaptureHeader(t *testing.T) {
	auth := mw.NewAuth("secret-token", "")
	handler := auth.RequireIngestToken(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	req.Header.Set("X-Errsink-Token", "secret-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Admin token tests
// ========================================

func TestAdmin_DisabledWithoutHash(t *testing.T) {
	auth := mw.NewAuth("", "")
	handler := auth.RequireAdmin(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ADMIN_DISABLED", errBody(t, w)["code"])
}

func TestAdmin_RejectsMissingHeader(t *testing.T) {
	auth := mw.NewAuth("", hashToken(t, "admin-secret"))
	handler := auth.RequireAdmin(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/settings", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_RejectsWrongToken(t *testing.T) {
	auth := mw.NewAuth("", hashToken(t, "admin-secret"))
	handler := auth.RequireAdmin(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_AcceptsValidToken(t *testing.T) {
	auth := mw.NewAuth("", hashToken(t, "admin-secret"))
	handler := auth.RequireAdmin(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Rate limit tests
// ========================================

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 5)
	handler := rl.LimitByIP(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_BlocksOverLimit(t *testing.T) {
	mc := &mockCache{}
	rl := mw.NewRateLimit(mc, 2)
	handler := rl.LimitByIP(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/v1/errors", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody(t, last)["code"])
}

func TestRateLimit_FailsOpenOnCacheError(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{err: errors.New("redis down")}, 1)
	handler := rl.LimitByIP(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/v1/errors", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_SharedBucket(t *testing.T) {
	mc := &mockCache{}
	rl := mw.NewRateLimit(mc, 1)
	handler := rl.LimitShared("admin")(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/api/v1/settings", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/api/v1/settings", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

// ========================================
// Client IP resolver tests
// ========================================

func TestResolveClientIP_PopulatesContext(t *testing.T) {
	var gotIP string
	var gotUser int64
	var gotOK bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = mw.GetClientIP(r)
		gotUser, gotOK = mw.GetUserID(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.ResolveClientIP(inner)

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	req.RemoteAddr = "198.51.100.1:4242"
	req.Header.Set("CF-Connecting-IP", "203.0.113.9")
	req.Header.Set("X-User-ID", "42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "203.0.113.9", gotIP)
	assert.True(t, gotOK)
	assert.Equal(t, int64(42), gotUser)
}

func TestLogger_ReportsResolvedClientIP(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.ResolveClientIP(mw.Logger(inner))

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	req.RemoteAddr = "198.51.100.1:4242"
	req.Header.Set("CF-Connecting-IP", "203.0.113.9")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Contains(t, buf.String(), "client_ip=203.0.113.9")
}

func TestResolveClientIP_IgnoresBadUserID(t *testing.T) {
	var gotOK bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotOK = mw.GetUserID(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.ResolveClientIP(inner)

	req := httptest.NewRequest("POST", "/api/v1/errors", nil)
	req.Header.Set("X-User-ID", "not-a-number")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, gotOK)
}
