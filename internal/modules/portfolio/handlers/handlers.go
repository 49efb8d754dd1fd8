// Package handlers provides HTTP handlers for portfolio snapshots and asset profiles.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service     *portfolio.Service
	profileRepo *portfolio.ProfileRepository
	log         zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, profileRepo *portfolio.ProfileRepository, log zerolog.Logger) *Handler {
	return &Handler{
		service:     service,
		profileRepo: profileRepo,
		log:         log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleBuildSnapshot validates the submitted positions, values them, and
// persists the resulting snapshot.
func (h *Handler) HandleBuildSnapshot(w http.ResponseWriter, r *http.Request) {
	var req portfolio.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.service.BuildSnapshot(req)
	if err != nil {
		// Validation failures are caller errors, not server errors
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SaveSnapshot(snap); err != nil {
		h.log.Error().Err(err).Msg("Failed to persist snapshot")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

// HandleGetLatestSnapshot returns the newest stored snapshot for a portfolio.
func (h *Handler) HandleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		portfolioID = "main"
	}

	snap, err := h.service.LatestSnapshot(portfolioID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		h.writeError(w, http.StatusNotFound, "no snapshot stored for portfolio "+portfolioID)
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

// HandleListSnapshots returns recent snapshots, newest first.
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		portfolioID = "main"
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = parsed
	}

	snapshots, err := h.service.RecentSnapshots(portfolioID, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"count":        len(snapshots),
		"snapshots":    snapshots,
	})
}

// HandleGetProfiles returns all stored asset profiles.
func (h *Handler) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profileRepo.GetAll()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if profiles == nil {
		profiles = []portfolio.AssetProfile{}
	}
	h.writeJSON(w, http.StatusOK, profiles)
}

// HandleUpsertProfile stores or replaces the profile for a symbol.
func (h *Handler) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var profile portfolio.AssetProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	profile.Symbol = symbol

	if err := h.profileRepo.Upsert(profile); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stored, err := h.profileRepo.Get(symbol)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stored)
}

// HandleDeleteProfile removes the profile for a symbol.
func (h *Handler) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if err := h.profileRepo.Delete(symbol); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"deleted": symbol})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
