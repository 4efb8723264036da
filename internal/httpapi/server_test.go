package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/decant/internal/classify"
	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/extract"
	"github.com/RBarbieri13/decant/internal/importcache"
	"github.com/RBarbieri13/decant/internal/keystore"
	"github.com/RBarbieri13/decant/internal/orchestrator"
	"github.com/RBarbieri13/decant/internal/resilience"
	"github.com/RBarbieri13/decant/internal/similarity"
	"github.com/RBarbieri13/decant/internal/storage"
)

type stubExtractor struct{}

func (stubExtractor) ContentType() extract.ContentType { return extract.ContentArticle }
func (stubExtractor) CanHandle(string) bool             { return true }
func (stubExtractor) RequiresAPIKey() bool               { return false }
func (stubExtractor) Extract(ctx context.Context, url string, opts extract.Options) (*extract.Result, error) {
	return &extract.Result{
		Success: true,
		Data:    map[string]interface{}{"title": "Test Node", "description": "a test node"},
		Metadata: extract.Metadata{ExtractionMethod: extract.MethodScraping, Confidence: 0.9},
	}, nil
}

// newTestServer builds a fully-wired Server over an in-memory store, with
// every rate limit set generously high so handler tests aren't throttled
// by the per-minute budgets (those are exercised separately).
func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	factory := extract.NewFactory(nil)
	factory.Register(stubExtractor{})
	classifier := classify.NewClassifier(nil, nil)
	engine := similarity.NewEngine(store, nil)
	cache := importcache.New(nil)
	orch := orchestrator.New(store, factory, classifier, engine, cache, nil, nil, nil)

	ks, err := keystore.Open("", "test-master-key", nil)
	require.NoError(t, err)

	cfg := &core.Config{
		Env: "dev",
		RateLimit: core.RateLimitConfig{GlobalPerMinute: 100000, ImportPerMinute: 100000, SettingsPerMinute: 100000},
	}

	metrics := NewMetrics(prometheus.NewRegistry())
	breakers := resilience.NewRegistry(nil)

	srv := New(cfg, store, orch, engine, ks, breakers, metrics, nil)
	return srv, store
}

func TestServer_Handler_RoutesHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Handler_AppliesCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Config.CORSAllowedOrigins = []string{"https://allowed.example"}

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Handler_GlobalRateLimitReturns429(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.globalLimiter = newScopeLimiter(1)

	handler := srv.Handler()
	req := func() *http.Request { return httptest.NewRequest(http.MethodGet, "/health/live", nil) }

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req())
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req())
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "60", rec2.Header().Get("Retry-After"))
}

func TestServer_Handler_404ForUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
