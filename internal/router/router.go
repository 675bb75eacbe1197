package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"digipet-api/internal/handler"
	"digipet-api/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler      *handler.Handler
	PetHandler   *handler.PetHandler
	AdminHandler *handler.AdminHandler
	APIKeys      []string
	Logger       *slog.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", middleware.UserIDHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health checks stay outside the API key check.
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKey(cfg.APIKeys))

			if cfg.PetHandler != nil {
				r.Route("/pets", func(r chi.Router) {
					r.Get("/", cfg.PetHandler.List)
					r.Get("/available", cfg.PetHandler.ListAvailable)
					r.Get("/{id}", cfg.PetHandler.Get)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireUser)
						r.Get("/mine", cfg.PetHandler.ListMine)
						r.Patch("/{id}/interact", cfg.PetHandler.Interact)
						r.Patch("/{id}/adopt", cfg.PetHandler.Adopt)
						r.Post("/schedule-feeding", cfg.PetHandler.ScheduleFeeding)
						r.Get("/{id}/schedules", cfg.PetHandler.ListSchedules)
					})
				})
			}

			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Post("/jobs/{name}/run", cfg.AdminHandler.RunJob)
				})
			}
		})
	})

	return r
}
