package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/traceon/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	checkHandler := handlers.NewCheckHandler(s.service, s.config.Web.UploadDir)
	galleryHandler := handlers.NewGalleryHandler(s.service)

	s.router.Get("/", handlers.Root)

	// Path used by the existing frontend.
	s.router.Post("/api/check-image", checkHandler.CheckImage)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.Health(s.service.Store()))
		r.Post("/check-image", checkHandler.CheckImage)

		r.Get("/gallery", galleryHandler.List)
		r.Get("/gallery/{label}", galleryHandler.Get)

		r.Post("/diagnostics/nearest", galleryHandler.Nearest)
	})
}
