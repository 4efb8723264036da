package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/RBarbieri13/decant/internal/classify"
	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/enrich"
	"github.com/RBarbieri13/decant/internal/extract"
	"github.com/RBarbieri13/decant/internal/httpapi"
	"github.com/RBarbieri13/decant/internal/importcache"
	"github.com/RBarbieri13/decant/internal/keystore"
	"github.com/RBarbieri13/decant/internal/llm"
	"github.com/RBarbieri13/decant/internal/obstel"
	"github.com/RBarbieri13/decant/internal/orchestrator"
	"github.com/RBarbieri13/decant/internal/resilience"
	"github.com/RBarbieri13/decant/internal/similarity"
	"github.com/RBarbieri13/decant/internal/storage"
)

func main() {
	cfg := core.Load()
	logger := core.NewProductionLogger("decant")

	store, err := storage.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to open storage", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer store.Close()

	breakers := resilience.NewRegistry(nil)

	keystorePath := ""
	if home, herr := os.UserHomeDir(); herr == nil {
		keystorePath = home + "/.decant/keystore.json"
	}
	ks, err := keystore.Open(keystorePath, cfg.MasterKey, logger)
	if err != nil {
		logger.Error("failed to open keystore", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	openAIKey := cfg.OpenAIAPIKey
	if stored, ok, _ := ks.Get("openai"); ok && stored != "" {
		openAIKey = stored
	}
	llmProvider := llm.NewOpenAIProvider(openAIKey, breakers.Get("llm.openai"), logger)
	classifier := classify.NewClassifier(llmProvider, logger)

	engine := similarity.NewEngine(store, logger)
	cache := importcache.New(logger)

	httpClient := &http.Client{Timeout: 15 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	factory := extract.NewFactory(logger)
	factory.Register(extract.NewArticleExtractor(httpClient, extract.ContentArticle))
	factory.Register(extract.NewYouTubeExtractor(httpClient, breakers.Get("extract.youtube")))
	factory.Register(extract.NewGitHubExtractor(httpClient, breakers.Get("extract.github")))
	factory.Register(extract.NewTwitterExtractor(httpClient, breakers.Get("extract.twitter")))
	factory.Register(extract.NewPodcastExtractor(httpClient))
	factory.Register(extract.NewPaperExtractor(httpClient))
	factory.Register(extract.NewTweetExtractor(httpClient))
	factory.Register(extract.NewImageExtractor(httpClient))
	factory.Register(extract.NewToolExtractor(httpClient))
	factory.Register(extract.NewWebsiteExtractor(httpClient))

	enrichPool := enrich.New(func(ctx context.Context, job enrich.Job) error {
		_, err := engine.UpdateForNode(ctx, job.NodeID)
		return err
	}, enrich.DefaultConfig(), logger)

	tracerProvider, err := obstel.NewProvider(obstel.Config{ServiceName: "decant", PrettyPrint: cfg.Env == "dev"})
	if err != nil {
		logger.Error("failed to start tracer provider", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	orch := orchestrator.New(store, factory, classifier, engine, cache, enrichPool, cfg.ExtractorAPIKeys, logger)
	orch.Tracer = tracerProvider.Tracer()

	metrics := httpapi.NewMetrics(prometheus.DefaultRegisterer)
	server := httpapi.New(cfg, store, orch, engine, ks, breakers, metrics, logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enrichPool.Start(rootCtx)
	defer enrichPool.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting decant HTTP server", map[string]interface{}{"addr": addr, "env": cfg.Env})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped unexpectedly", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
