package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postersnap/postersnap/internal/cache"
	"github.com/postersnap/postersnap/internal/config"
	"github.com/postersnap/postersnap/internal/content"
	"github.com/postersnap/postersnap/internal/database"
	"github.com/postersnap/postersnap/internal/generator"
	"github.com/postersnap/postersnap/internal/logging"
	"github.com/postersnap/postersnap/internal/metadata"
	"github.com/postersnap/postersnap/internal/middleware"
	"github.com/postersnap/postersnap/internal/queue"
	"github.com/postersnap/postersnap/internal/quota"
	"github.com/postersnap/postersnap/internal/render"
	"github.com/postersnap/postersnap/internal/storage"
	"github.com/postersnap/postersnap/internal/store"
	"github.com/postersnap/postersnap/internal/tracing"
)

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

	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("postersnap-api", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.ErrorWithErr("Failed to initialize tracer, continuing without", err)
		} else {
			defer closer.Close()
		}
	}

	// Store: Postgres when enabled, in-memory otherwise
	var st store.Store
	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		st = database.NewRepository(db)
		logger.Info("Using Postgres store")
	} else {
		st = store.NewMemory()
		logger.Info("Using in-memory store")
	}

	var posterCache *cache.Cache
	if cfg.Redis.Enabled {
		posterCache, err = cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Redis.StatusTTL, cfg.Redis.TerminalTTL)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer posterCache.Close()
	}

	var artifactStorage *storage.Storage
	if cfg.Storage.Enabled {
		artifactStorage, err = storage.New(cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
	}

	synth := content.New(cfg.OpenAI, logger)
	renderer := render.New(artifactStorage, logger)
	extractor := metadata.New(cfg.Metadata)
	checker := quota.NewChecker(st, quota.NewEmailAllowlist(cfg.Auth.AdminEmails),
		cfg.Generator.CreditsPerPoster, cfg.Generator.DailyLimit, cfg.Generator.SessionFreeLimit)

	opts := generator.Options{
		JobTimeout:       cfg.Generator.JobTimeout,
		MaxParallelPages: cfg.Generator.MaxParallelPages,
	}

	// Dispatcher: RabbitMQ when enabled (jobs run in worker processes),
	// otherwise an in-process pool inside this binary.
	var gen *generator.Generator
	if cfg.Queue.Enabled {
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		gen = generator.New(st, checker, synth, renderer, extractor, q, logger, opts, nil)
	} else {
		pool := queue.NewPool(cfg.Generator.Workers, cfg.Generator.QueueBuffer, logger)
		gen = generator.New(st, checker, synth, renderer, extractor, pool, logger, opts, nil)
		pool.Start(gen)
		defer pool.Stop()
	}

	api := &API{
		store:     st,
		cache:     posterCache,
		generator: gen,
		quota:     checker,
		extractor: extractor,
		logger:    logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := setupRouter(api, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Outside OptionalAuth: a bad token must read as unauthenticated here,
	// not abort with 401
	router.POST("/api/check-auth", api.checkAuth)

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.OptionalAuth())
	{
		apiGroup.POST("/generate-poster", api.generatePoster)
		apiGroup.GET("/poster/:id", api.getPoster)
		apiGroup.POST("/extract-metadata", api.extractMetadata)
		apiGroup.GET("/user-usage/:userId", api.getUserUsage)
		apiGroup.POST("/admin/add-credits", api.addCredits)
	}

	return router
}
