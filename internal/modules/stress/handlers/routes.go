package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all stress test routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stress", func(r chi.Router) {
		r.Get("/scenarios", h.HandleListScenarios)
		r.Post("/scenarios/reload", h.HandleReloadScenarios)
		r.Post("/run", h.HandleRun)
	})
}
