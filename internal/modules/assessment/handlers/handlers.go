// Package handlers provides HTTP handlers for running and reading risk
// assessments.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/assessment"
)

// Handler handles assessment HTTP requests
type Handler struct {
	service *assessment.Service
	log     zerolog.Logger
}

// NewHandler creates a new assessment handler
func NewHandler(service *assessment.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "assessment").Logger(),
	}
}

// HandleRun executes one full assessment and returns the persisted result
// together with the alerts it raised.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req assessment.AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.AssessPortfolioRisk(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", req.PortfolioID).Msg("Assessment failed")
		h.writeError(w, http.StatusInternalServerError, "assessment failed: "+err.Error())
		return
	}

	alerts, err := h.service.Repo().AlertsForAssessment(result.ID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to load alerts for response")
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"assessment": result,
		"alerts":     alerts,
	})
}

// HandleLatest returns the most recent assessment for a portfolio.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		portfolioID = "main"
	}

	result, alerts, err := h.service.Latest(portfolioID)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to load assessment")
		h.writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, "no assessment found for portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessment": result,
		"alerts":     alerts,
	})
}

// HandleGet returns one assessment by id.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.Repo().GetByID(id)
	if err != nil {
		h.log.Error().Err(err).Str("assessment_id", id).Msg("Failed to load assessment")
		h.writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, "assessment not found")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleList returns recent assessment summaries, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		portfolioID = "main"
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 200 {
			h.writeError(w, http.StatusBadRequest, "limit must be an integer in [1, 200]")
			return
		}
		limit = parsed
	}

	assessments, err := h.service.Repo().ListByPortfolio(portfolioID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to list assessments")
		h.writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}

	summaries := make([]map[string]interface{}, 0, len(assessments))
	for _, a := range assessments {
		summaries = append(summaries, map[string]interface{}{
			"id":            a.ID,
			"portfolio_id":  a.PortfolioID,
			"assessed_at":   a.AssessedAt,
			"risk_grade":    a.Metrics.RiskGrade,
			"overall_score": a.Metrics.OverallRiskScore,
			"degraded":      a.Degraded,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"count":        len(summaries),
		"assessments":  summaries,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
