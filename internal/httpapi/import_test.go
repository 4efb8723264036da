package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleImport_CreatesNodeAndReturnsSuccess(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(importRequest{URL: "https://example.com/new-article"})
	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.handleImport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.False(t, resp["cached"].(bool))
}

func TestHandleImport_InvalidBodyReturnsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	srv.handleImport(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleImport_InvalidURLPropagatesOrchestratorError(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(importRequest{URL: "not-a-url"})
	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.handleImport(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleImportCheck_ReportsNonexistentURL(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/import/check?url=https://example.com/unknown", nil)
	rec := httptest.NewRecorder()

	srv.handleImportCheck(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["exists"])
}

func TestHandleImportCheck_ReportsExistingURLAfterImport(t *testing.T) {
	srv, _ := newTestServer(t)
	importBody, _ := json.Marshal(importRequest{URL: "https://example.com/checked-article"})
	importReq := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(importBody))
	importRec := httptest.NewRecorder()
	srv.handleImport(importRec, importReq)
	require.Equal(t, http.StatusOK, importRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/import/check?url=https://example.com/checked-article", nil)
	rec := httptest.NewRecorder()

	srv.handleImportCheck(rec, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["exists"])
}

func TestHandleImportCacheDelete_ReportsWhetherEntryExisted(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/import/cache?url=https://example.com/never-cached", nil)
	rec := httptest.NewRecorder()

	srv.handleImportCacheDelete(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["invalidated"])
}

func TestHandleImportCacheStats_ReturnsNote(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/import/cache/stats", nil)
	rec := httptest.NewRecorder()

	srv.handleImportCacheStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
