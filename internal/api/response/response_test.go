package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJSONEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decode(t, w)
	assert.Equal(t, "ok", body["data"].(map[string]any)["status"])
}

func TestCollectionEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Collection(w, []int{1, 2, 3}, PaginationMeta{Limit: 3, Offset: 0, Total: 10, HasNext: true})

	body := decode(t, w)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(10), meta["total"])
	assert.Equal(t, true, meta["has_next"])
}

func TestErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "INVALID_REQUEST", "bad input", map[string]string{"field": "name"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
	assert.Equal(t, "bad input", errObj["message"])
	assert.NotNil(t, errObj["details"])
}

func TestErrorOmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, "NOT_FOUND", "missing", nil)

	body := decode(t, w)
	_, hasDetails := body["error"].(map[string]any)["details"]
	assert.False(t, hasDetails)
}
