package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk metrics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Post("/var", h.HandleVaR)
		r.Get("/metrics", h.HandleMetrics)
		r.Get("/correlation", h.HandleCorrelation)
	})
}
