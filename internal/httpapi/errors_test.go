package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForKind(t *testing.T) {
	cases := map[core.Kind]int{
		core.KindURLRequired:       http.StatusBadRequest,
		core.KindUnauthorized:      http.StatusUnauthorized,
		core.KindSSRFBlocked:       http.StatusForbidden,
		core.KindNotFound:          http.StatusNotFound,
		core.KindNetworkTimeout:    http.StatusRequestTimeout,
		core.KindContentTooLarge:   http.StatusRequestEntityTooLarge,
		core.KindRateLimitExceeded: http.StatusTooManyRequests,
		core.KindDuplicateURL:      http.StatusConflict,
		core.KindFetchFailed:       http.StatusBadGateway,
		core.KindCircuitOpen:       http.StatusServiceUnavailable,
		core.KindDatabaseError:     http.StatusInternalServerError,
		core.Kind("SOMETHING_ELSE"): http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusForKind(kind), kind)
	}
}

func TestServer_WriteError_IncludesKindAsCode(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	err := core.NewError("op", core.KindNotFound, "node missing", nil)
	srv.writeError(rec, req, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "node missing", body.Error)
}

func TestServer_WriteError_RedactsInternalMessageInProduction(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Config.Env = "production"
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	err := core.NewError("op", core.KindDatabaseError, "disk full: /var/lib/secret-path", errors.New("boom"))
	srv.writeError(rec, req, err)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "An internal error occurred", body.Error)
}

func TestServer_WriteError_KeepsDetailInDevForInternalError(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Config.Env = "dev"
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	err := core.NewError("op", core.KindDatabaseError, "disk full", nil)
	srv.writeError(rec, req, err)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "disk full")
}

func TestServer_WriteError_SetsRetryAfterForRateLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	err := core.NewRecoverableError("op", core.KindRateLimitExceeded, "slow down", nil)
	srv.writeError(rec, req, err)

	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRequestIDFrom_ReadsHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-42")
	assert.Equal(t, "req-42", requestIDFrom(req))
}
