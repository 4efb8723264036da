// Package httpapi implements decant's REST surface (spec.md §6): thin
// JSON handlers over the import orchestrator, storage engine, and
// similarity engine, built on net/http.ServeMux with Go 1.22+
// method-and-path patterns, grounded on the teacher's explicit-mux,
// explicit-middleware HTTP wiring style (core.BaseTool/core.BaseAgent
// never reach for a third-party router, so neither does this surface).
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/keystore"
	"github.com/RBarbieri13/decant/internal/orchestrator"
	"github.com/RBarbieri13/decant/internal/resilience"
	"github.com/RBarbieri13/decant/internal/similarity"
	"github.com/RBarbieri13/decant/internal/storage"
)

// tracedPaths lists endpoints excluded from server-side tracing spans;
// health checks and the metrics scrape would otherwise dominate the
// trace volume with no diagnostic value (grounded on the teacher's
// telemetry.TracingMiddlewareConfig.ExcludedPaths).
var tracedPaths = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// Server bundles every dependency the HTTP surface needs.
type Server struct {
	Config       *core.Config
	Store        *storage.Store
	Orchestrator *orchestrator.Orchestrator
	Similarity   *similarity.Engine
	Keystore     *keystore.Store
	Breakers     *resilience.Registry
	Metrics      *Metrics
	Logger       core.Logger

	globalLimiter   *scopeLimiter
	importLimiter   *scopeLimiter
	settingsLimiter *scopeLimiter
}

// New builds a Server and its rate limiters from cfg.RateLimit.
func New(cfg *core.Config, store *storage.Store, orch *orchestrator.Orchestrator, engine *similarity.Engine, ks *keystore.Store, breakers *resilience.Registry, metrics *Metrics, logger core.Logger) *Server {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Server{
		Config: cfg, Store: store, Orchestrator: orch, Similarity: engine,
		Keystore: ks, Breakers: breakers, Metrics: metrics, Logger: logger,
		globalLimiter:   newScopeLimiter(cfg.RateLimit.GlobalPerMinute),
		importLimiter:   newScopeLimiter(cfg.RateLimit.ImportPerMinute),
		settingsLimiter: newScopeLimiter(cfg.RateLimit.SettingsPerMinute),
	}
}

// Handler builds the full mux with CORS and the global rate limiter
// applied to every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/import", rateLimit(s.importLimiter, s.handleImport))
	mux.HandleFunc("GET /api/import/check", s.handleImportCheck)
	mux.HandleFunc("DELETE /api/import/cache", s.handleImportCacheDelete)
	mux.HandleFunc("GET /api/import/cache/stats", s.handleImportCacheStats)

	mux.HandleFunc("GET /api/nodes", s.handleListNodes)
	mux.HandleFunc("GET /api/nodes/{id}", s.handleGetNode)
	mux.HandleFunc("POST /api/nodes/{id}", s.handleUpdateNode)
	mux.HandleFunc("PUT /api/nodes/{id}", s.handleUpdateNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", s.handleDeleteNode)
	mux.HandleFunc("POST /api/nodes/{id}/merge", s.handleMergeNode)
	mux.HandleFunc("POST /api/nodes/{id}/move", s.handleMoveNode)
	mux.HandleFunc("GET /api/nodes/{id}/related", s.handleRelatedNodes)
	mux.HandleFunc("GET /api/nodes/{id}/backlinks", s.handleBacklinks)

	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/search/filtered", s.handleSearchFiltered)

	mux.HandleFunc("GET /api/tree/{view}", s.handleTree)
	mux.HandleFunc("GET /api/tree/{view}/subtree/{path...}", s.handleSubtree)
	mux.HandleFunc("GET /api/tree/{view}/node/{code...}", s.handleTreeNode)

	mux.HandleFunc("POST /api/settings/api-key", rateLimit(s.settingsLimiter, s.handleSetAPIKey))
	mux.HandleFunc("GET /api/settings/api-key", rateLimit(s.settingsLimiter, s.handleListAPIKeys))
	mux.HandleFunc("DELETE /api/settings/api-key", rateLimit(s.settingsLimiter, s.handleDeleteAPIKey))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/live", s.handleHealthLive)
	mux.HandleFunc("GET /health/ready", s.handleHealthReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = otelhttp.NewHandler(handler, "decant",
		otelhttp.WithFilter(func(r *http.Request) bool { return !tracedPaths[r.URL.Path] }),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
	handler = core.CORSMiddleware(s.Config.CORSAllowedOrigins)(handler)
	handler = rateLimitAll(s.globalLimiter, handler)
	return handler
}

// rateLimitAll applies limiter to every request, unlike the per-route
// rateLimit helper used for the import/settings scopes.
func rateLimitAll(limiter *scopeLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow() {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", RetryAfter: "60"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
