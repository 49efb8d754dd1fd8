package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/snapshot", h.HandleBuildSnapshot)    // Build + persist a valued snapshot
		r.Get("/snapshot", h.HandleGetLatestSnapshot) // Latest stored snapshot
		r.Get("/snapshots", h.HandleListSnapshots)    // Recent snapshots

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.HandleGetProfiles)
			r.Put("/{symbol}", h.HandleUpsertProfile)
			r.Delete("/{symbol}", h.HandleDeleteProfile)
		})
	})
}
