package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/postersnap/postersnap/internal/config"
	"github.com/postersnap/postersnap/internal/content"
	"github.com/postersnap/postersnap/internal/database"
	"github.com/postersnap/postersnap/internal/generator"
	"github.com/postersnap/postersnap/internal/logging"
	"github.com/postersnap/postersnap/internal/metadata"
	"github.com/postersnap/postersnap/internal/metrics"
	"github.com/postersnap/postersnap/internal/queue"
	"github.com/postersnap/postersnap/internal/quota"
	"github.com/postersnap/postersnap/internal/render"
	"github.com/postersnap/postersnap/internal/storage"
	"github.com/postersnap/postersnap/internal/tracing"
)

// The worker consumes generation jobs from RabbitMQ. It requires the shared
// Postgres store; an in-memory store would be invisible to the API process.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Database.Enabled || !cfg.Queue.Enabled {
		logger.Fatal("Worker requires database.enabled and queue.enabled")
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("postersnap-worker", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.ErrorWithErr("Failed to initialize tracer, continuing without", err)
		} else {
			defer closer.Close()
		}
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	st := database.NewRepository(db)

	var artifactStorage *storage.Storage
	if cfg.Storage.Enabled {
		artifactStorage, err = storage.New(cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
	}

	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	synth := content.New(cfg.OpenAI, logger)
	renderer := render.New(artifactStorage, logger)
	extractor := metadata.New(cfg.Metadata)
	checker := quota.NewChecker(st, quota.NewEmailAllowlist(cfg.Auth.AdminEmails),
		cfg.Generator.CreditsPerPoster, cfg.Generator.DailyLimit, cfg.Generator.SessionFreeLimit)

	gen := generator.New(st, checker, synth, renderer, extractor, q, logger, generator.Options{
		JobTimeout:       cfg.Generator.JobTimeout,
		MaxParallelPages: cfg.Generator.MaxParallelPages,
	}, nil)

	metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.ErrorWithErr("Metrics server stopped", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down worker...")
		cancel()
	}()

	logger.Info("Worker started, waiting for jobs")
	if err := q.Consume(ctx, gen.Process); err != nil && ctx.Err() == nil {
		logger.Fatalf("Consumer stopped: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("Worker stopped")
}
