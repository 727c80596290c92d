package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/immcad/backend/internal/caselaw"
	"github.com/immcad/backend/internal/chat"
	"github.com/immcad/backend/internal/config"
	"github.com/immcad/backend/internal/httpapi"
	"github.com/immcad/backend/internal/ingest"
	"github.com/immcad/backend/internal/middleware"
	"github.com/immcad/backend/internal/provider"
	"github.com/immcad/backend/internal/sources"
	"github.com/immcad/backend/internal/telemetry"
)

func main() {
	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	registry, err := sources.LoadRegistry(cfg.SourceRegistryPath)
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}
	policies, err := sources.LoadPolicy(cfg.SourcePolicyPath)
	if err != nil {
		log.Fatalf("Failed to load source policy: %v", err)
	}
	if cfg.IsProduction() {
		if missing := policies.CheckRegistryCoverage(registry); len(missing) > 0 {
			log.Fatalf("Sources missing from policy in production: %v", missing)
		}
	}

	checkpoints, err := ingest.NewCheckpointStore(cfg.CheckpointStatePath)
	if err != nil {
		log.Fatalf("Failed to open checkpoint state: %v", err)
	}

	promReg := prometheus.NewRegistry()
	prom := telemetry.NewPromMetrics(promReg)
	metrics := telemetry.NewMetrics(prom)
	auditor := telemetry.NewAuditor(os.Stderr)

	providers, err := provider.BuildProviders(cfg)
	if err != nil {
		log.Fatalf("Failed to build providers: %v", err)
	}
	router := provider.NewRouter(providers, cfg.PrimaryProvider,
		cfg.CircuitFailureThreshold,
		time.Duration(cfg.CircuitOpenSeconds)*time.Second,
		metrics)

	pool := chat.NewWorkerPool(8, 128)
	defer pool.Shutdown()

	chatSvc := chat.NewService(
		chat.NewKeywordGrounder(chat.DefaultKeywordBundles(), chat.DefaultMaxCitations),
		router, auditor, metrics,
		chat.Options{
			TrustedDomains: cfg.CitationTrustedDomains,
			Pool:           pool,
		})

	var official caselaw.Searcher
	if cfg.EnableOfficialCaseSources {
		official = caselaw.NewOfficialClient(caselaw.DefaultFeedEndpoints(), nil, 15*time.Second)
	}
	var fallback caselaw.Searcher
	if cfg.CanLIIAPIKey != "" {
		fallback = caselaw.NewCanLIIClient(cfg.CanLIIAPIKey, "", nil)
	}
	searchSvc := caselaw.NewSearchService(official, fallback)
	researchSvc := caselaw.NewResearchService(searchSvc)

	limiter := middleware.BuildRateLimiter(context.Background(), cfg.RedisURL, cfg.RateLimitPerMinute)

	srv := httpapi.NewServer(httpapi.Deps{
		Config:      cfg,
		Chat:        chatSvc,
		Search:      searchSvc,
		Research:    researchSvc,
		Registry:    registry,
		Policies:    policies,
		Checkpoints: checkpoints,
		Router:      router,
		Metrics:     metrics,
		Auditor:     auditor,
		Limiter:     limiter,
		PromReg:     promReg,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("IMMCAD API starting on port %s (environment=%s, primary=%s)",
		cfg.Port, cfg.Environment, cfg.PrimaryProvider)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
