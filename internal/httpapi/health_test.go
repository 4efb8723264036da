package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth_ReportsOKWhenDatabaseReachable(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["database"])
}

func TestHandleHealthLive_AlwaysOK(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	srv.handleHealthLive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealthReady_OKWhenDatabaseReachable(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	srv.handleHealthReady(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealthReady_ServiceUnavailableAfterStoreClosed(t *testing.T) {
	srv, store := newTestServer(t)
	store.Close()

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	srv.handleHealthReady(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
