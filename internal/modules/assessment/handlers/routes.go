package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers assessment endpoints on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assessments", func(r chi.Router) {
		r.Post("/run", h.HandleRun)
		r.Get("/", h.HandleList)
		r.Get("/latest", h.HandleLatest)
		r.Get("/{id}", h.HandleGet)
	})
}
