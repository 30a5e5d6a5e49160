package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hyperengineering/inkwell/internal/auth"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, provider auth.Provider) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(provider))

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.Post("/", h.CreateProject)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", h.GetProject)
					r.Put("/", h.UpdateProject)
					r.Delete("/", h.DeleteProject)

					r.Get("/chapters", h.ListChapters)
					r.Post("/chapters", h.CreateChapter)
					r.Put("/chapters/reorder", h.ReorderChapters)

					r.Get("/synopsis", h.GetSynopsis)
					r.Put("/synopsis", h.PutSynopsis)
					r.Delete("/synopsis", h.DeleteSynopsis)

					r.Get("/characters", h.ListCharacters)
					r.Post("/characters", h.CreateCharacter)
					r.Put("/characters/reorder", h.ReorderCharacters)

					r.Get("/relationships", h.ListRelationships)
					r.Post("/relationships", h.CreateRelationship)
				})
			})

			r.Route("/chapters/{id}", func(r chi.Router) {
				r.Get("/", h.GetChapter)
				r.Put("/", h.UpdateChapter)
				r.Delete("/", h.DeleteChapter)
			})

			r.Route("/synopses/{id}/versions", func(r chi.Router) {
				r.Get("/", h.ListSynopsisVersions)
				r.Post("/", h.CreateSynopsisVersion)
			})

			r.Route("/characters/{id}", func(r chi.Router) {
				r.Get("/", h.GetCharacter)
				r.Put("/", h.UpdateCharacter)
				r.Delete("/", h.DeleteCharacter)
				r.Get("/versions", h.ListCharacterVersions)
				r.Post("/versions", h.CreateCharacterVersion)
			})

			r.Route("/relationships/{id}", func(r chi.Router) {
				r.Get("/", h.GetRelationship)
				r.Put("/", h.UpdateRelationship)
				r.Delete("/", h.DeleteRelationship)
			})

			r.Post("/sync/run", h.SyncRun)
			r.Get("/sync/status", h.SyncStatus)
			r.Post("/sync/pull", h.SyncPull)

			r.Post("/session/signin", h.SignIn)
		})
	})

	return r
}
