package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/aggregator"
	"github.com/trendzee/live-trends/internal/api"
	"github.com/trendzee/live-trends/internal/archive"
	"github.com/trendzee/live-trends/internal/assistant"
	"github.com/trendzee/live-trends/internal/config"
	"github.com/trendzee/live-trends/internal/notifications"
	"github.com/trendzee/live-trends/internal/pipeline"
	"github.com/trendzee/live-trends/internal/query"
	"github.com/trendzee/live-trends/internal/ratelimit"
	"github.com/trendzee/live-trends/internal/reconcile"
	"github.com/trendzee/live-trends/internal/scheduler"
	"github.com/trendzee/live-trends/internal/sources"
	"github.com/trendzee/live-trends/internal/storage"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting live trends daemon")

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to open trend store: %v", err)
	}
	defer store.Close()

	runArchive, err := archive.Open(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize run archive: %v", err)
	}

	registry := sources.NewDefaultRegistry(cfg)
	pipelineService := pipeline.NewService(
		store,
		aggregator.New(registry, cfg.SourceTimeout),
		reconcile.NewEngine(store),
		pipeline.WithArchive(runArchive),
		pipeline.WithNotifier(notifications.NewService(cfg.TeamsWebhookURL)),
		pipeline.WithDefaultSources(cfg.FetchSources),
	)

	schedulerService := scheduler.NewService(cfg.FetchSchedule, cfg.FetchTimeout, cfg.FetchSources, pipelineService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	trends := query.NewService(store)
	generator := assistant.NewGenerator(cfg.GeminiAPIKey, cfg.GeminiModels, 60*time.Second)
	if generator == nil {
		logrus.Info("GEMINI_API_KEY not set, assistant serves templated responses")
	}

	apiServer := api.NewServer(
		pipelineService,
		trends,
		assistant.New(generator, trends),
		ratelimit.New(ratelimit.NewMemoryStore(), cfg.ChatRateLimit, cfg.ChatRateWindow),
		api.WithTriggerTimeout(cfg.FetchTimeout),
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithTrustedProxyHeaders(cfg.TrustProxyHeaders),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
