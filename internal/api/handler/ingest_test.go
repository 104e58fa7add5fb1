package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/errsink/errsink/internal/api/handler"
	"github.com/errsink/errsink/internal/ingest"
	"github.com/errsink/errsink/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubmitter struct {
	out    *ingest.Outcome
	err    error
	gotCtx ingest.RequestContext
	gotRaw []byte
}

func (m *mockSubmitter) Ingest(_ context.Context, reqCtx ingest.RequestContext, raw []byte) (*ingest.Outcome, error) {
	m.gotCtx = reqCtx
	m.gotRaw = raw
	return m.out, m.err
}

func postErrors(t *testing.T, h http.HandlerFunc, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/v1/errors", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.9:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIngestHandler_Created(t *testing.T) {
	ms := &mockSubmitter{out: &ingest.Outcome{Record: &models.ErrorRecord{ID: 99}}}
	h := handler.NewIngestHandler(ms, 51200)

	w := postErrors(t, h, map[string]any{"error_type": "error", "error_message": "boom"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["logged"])
	assert.Equal(t, float64(99), data["id"])
	assert.Equal(t, "203.0.113.9", ms.gotCtx.ClientIP)
}

func TestIngestHandler_IgnoredAcknowledged(t *testing.T) {
	ms := &mockSubmitter{out: &ingest.Outcome{Record: &models.ErrorRecord{}, Ignored: true, IgnoredByID: 3}}
	h := handler.NewIngestHandler(ms, 51200)

	w := postErrors(t, h, map[string]any{"error_type": "error", "error_message": "noise"})

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["data"].(map[string]any)["ignored"])
}

func TestIngestHandler_RateLimitedLooksLikeSuccess(t *testing.T) {
	ms := &mockSubmitter{out: &ingest.Outcome{Record: &models.ErrorRecord{}, RateLimited: true}}
	h := handler.NewIngestHandler(ms, 51200)

	w := postErrors(t, h, map[string]any{"error_type": "error", "error_message": "spam"})

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["data"].(map[string]any)["logged"])
}

func TestIngestHandler_ValidationErrors(t *testing.T) {
	ms := &mockSubmitter{err: ingest.ErrValidation}
	h := handler.NewIngestHandler(ms, 51200)

	w := postErrors(t, h, map[string]any{"error_type": "error"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestHandler_PayloadTooLarge(t *testing.T) {
	ms := &mockSubmitter{err: ingest.ErrPayloadTooLarge}
	h := handler.NewIngestHandler(ms, 51200)

	w := postErrors(t, h, map[string]any{"error_type": "error", "error_message": "x"})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIngestHandler_BodyCappedAtTransport(t *testing.T) {
	ms := &mockSubmitter{out: &ingest.Outcome{Record: &models.ErrorRecord{}}}
	h := handler.NewIngestHandler(ms, 64)

	big := bytes.Repeat([]byte("a"), 200)
	req := httptest.NewRequest("POST", "/api/v1/errors", bytes.NewReader(big))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIngestHandler_InternalError(t *testing.T) {
	ms := &mockSubmitter{err: errors.New("db gone")}
	h := handler.NewIngestHandler(ms, 51200)

	w := postErrors(t, h, map[string]any{"error_type": "error", "error_message": "x"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIngestHandler_StorageErrorCarriesDriverDetail(t *testing.T) {
	driverErr := fmt.Errorf("%w: insert error record: ERROR: value too long for type character varying(50) (SQLSTATE 22001)", ingest.ErrStorage)
	ms := &mockSubmitter{err: driverErr}
	h := handler.NewIngestHandler(ms, 51200)

	w := postErrors(t, h, map[string]any{"error_type": "error", "error_message": "x"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "STORAGE_ERROR", errBody["code"])
	assert.Contains(t, errBody["message"], "SQLSTATE 22001")
}
