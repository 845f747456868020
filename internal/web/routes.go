package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-finder/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	profilesHandler := handlers.NewProfilesHandler(s.deps.Profiles, s.config.Matching.MinQuality)
	scansHandler := handlers.NewScansHandler(s.deps.Orchestrator, s.deps.Profiles, s.deps.Photos, s.jobManager)
	cacheHandler := handlers.NewCacheHandler(s.deps.Cache)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Profiles
		r.Get("/profiles/{ownerId}", profilesHandler.Get)
		r.Post("/profiles/{ownerId}", profilesHandler.Build)
		r.Delete("/profiles/{ownerId}", profilesHandler.Delete)
		r.Post("/profiles/{ownerId}/photos", profilesHandler.AddPhotos)
		r.Delete("/profiles/{ownerId}/photos", profilesHandler.RemovePhotos)
		r.Post("/profiles/{ownerId}/optimize", profilesHandler.Optimize)

		// Scans (long-running operations)
		r.Post("/scans", scansHandler.Start)
		r.Get("/scans/{jobId}", scansHandler.Status)
		r.Get("/scans/{jobId}/events", scansHandler.Events)
		r.Delete("/scans/{jobId}", scansHandler.Cancel)

		// Cache
		r.Get("/cache/{ownerId}", cacheHandler.Get)
		r.Delete("/cache/{ownerId}", cacheHandler.Delete)
	})
}
