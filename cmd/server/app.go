package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	apiMiddleware "github.com/uibattles/uibattles-api/internal/api/middleware"
	"github.com/uibattles/uibattles-api/internal/config"
	"github.com/uibattles/uibattles-api/internal/generation"
	"github.com/uibattles/uibattles-api/internal/platform/gemini"
	"github.com/uibattles/uibattles-api/internal/platform/openrouter"
	"github.com/uibattles/uibattles-api/internal/platform/postgres"
	"github.com/uibattles/uibattles-api/internal/service"
	"github.com/uibattles/uibattles-api/internal/service/auth"
	"github.com/uibattles/uibattles-api/internal/store"
	"github.com/uibattles/uibattles-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	generationStore store.GenerationStore
	galleryStore    *postgres.PostgresGalleryStore

	// Service interfaces
	jwtService        auth.JWTService
	generationService service.GenerationService
	galleryService    service.GalleryService

	// Model access
	catalog  *openrouter.Catalog
	executor *generation.Executor

	// Request throttling for /api/generate
	rateLimiter *apiMiddleware.RateLimiter

	// Background execution
	taskRunner *task.Runner
}

// newApplication creates a new application instance with all dependencies initialized.
// It accepts core dependencies like configuration, logger, and database connection that
// must be established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth, auth.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	generationStore := postgres.NewPostgresGenerationStore(db, logger)
	app.generationStore = generationStore
	app.galleryStore = postgres.NewPostgresGalleryStore(db, logger)

	backend, err := newModelBackend(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	app.catalog, err = openrouter.NewCatalog(cfg.LLM, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model catalog: %w", err)
	}

	monitor := generation.NewStoreMonitor(generationStore)
	modelClient, err := generation.NewModelClient(generationStore, backend, monitor, cfg.LLM.ModelTimeout(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	app.executor, err = generation.NewExecutor(generationStore, modelClient, monitor, cfg.Task.MaxConcurrent, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	app.taskRunner = task.NewRunner(app.executor, generationStore, task.RunnerConfig{
		WorkerCount: cfg.Task.RunnerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, logger)

	app.generationService, err = service.NewGenerationService(generationStore, app.taskRunner, app.executor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}

	app.galleryService, err = service.NewGalleryService(app.galleryStore, app.galleryStore, generationStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gallery service: %w", err)
	}

	app.rateLimiter = apiMiddleware.NewRateLimiter(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst, logger)

	logger.Info("Application initialized successfully",
		slog.Int("runner_count", cfg.Task.RunnerCount),
		slog.Int("max_concurrent", cfg.Task.MaxConcurrent),
		slog.Bool("gemini_enabled", cfg.LLM.GeminiAPIKey != ""))
	return app, nil
}

// newModelBackend routes google-ai/ models to Gemini when a server key is
// configured and everything else to OpenRouter, with retries around both.
func newModelBackend(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Backend, error) {
	openRouter, err := openrouter.NewClient(cfg, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenRouter client: %w", err)
	}

	router := generation.NewRouter(openRouter)
	if cfg.GeminiAPIKey != "" {
		gem, err := gemini.NewBackend(ctx, cfg.GeminiAPIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini backend: %w", err)
		}
		router.Handle(gemini.ModelPrefix, gem)
	}

	retry := generation.NewRetryPolicy(cfg.MaxRetries, cfg.RetryDelay())
	return generation.WithRetry(router, retry, logger.With("component", "model_retry")), nil
}

// Run starts the background runner and the rate limit janitor, then serves
// HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	if err := app.taskRunner.Start(ctx); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go app.rateLimiter.Cleanup(janitorCtx, apiMiddleware.DefaultCleanupInterval)

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop task runner; in-flight runs abandon their unsettled items
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	// Close database connection
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
