package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uibattles/uibattles-api/internal/api"
	apiMiddleware "github.com/uibattles/uibattles-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
// It accepts the application dependencies to create handlers and register routes.
// Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// RealIP runs before the rate limiter so buckets are keyed by client address.
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.logger)

	generationHandler := api.NewGenerationHandler(app.generationService, app.logger)
	galleryHandler := api.NewGalleryHandler(app.galleryService, app.logger)
	modelsHandler := api.NewModelsHandler(app.catalog, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints; a valid token identifies the viewer
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuth)

			r.Get("/models", modelsHandler.List)
			r.Get("/generations", galleryHandler.List)
			r.Get("/generations/{id}", galleryHandler.Detail)
			r.Get("/generations/{id}/like", galleryHandler.LikeStatus)
			r.Post("/generations/{id}/view", galleryHandler.View)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.With(app.rateLimiter.Middleware).Post("/generate", generationHandler.Generate)

			r.Get("/generation/{id}/status", generationHandler.Status)
			r.Post("/generation/{id}/abort", generationHandler.Abort)
			r.Post("/generation/item/{itemId}/retry", generationHandler.RetryItem)

			r.Post("/generations/{id}/like", galleryHandler.ToggleLike)
			r.Get("/account/generations", generationHandler.ListAccount)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
