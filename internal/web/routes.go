package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/phototag/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	photosHandler := handlers.NewPhotosHandler(s.deps.PhotoTags)
	facesHandler := handlers.NewFacesHandler(s.deps.Classifier, s.deps.PhotoTags)
	tagsHandler := handlers.NewTagsHandler(s.deps.Tags)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Photos
		r.Get("/photos/{id}/tags", photosHandler.GetTags)
		r.Post("/photos/{id}/faces", facesHandler.Classify)

		// Faces
		r.Post("/faces/detect", facesHandler.Detect)
		r.Get("/photo-tags/{id}/similar", facesHandler.Similar)

		// Libraries
		r.Get("/libraries/{id}/tags", tagsHandler.List)
	})
}
