// Package handlers provides HTTP handlers for the threshold monitor.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/alerts"
	"github.com/aristath/bastion/internal/modules/settings"
)

// AssessmentSource lists stored assessments for a portfolio, newest first.
type AssessmentSource interface {
	ListByPortfolio(portfolioID string, limit int) ([]domain.RiskAssessment, error)
}

// SnapshotSource resolves the holdings the per-asset checks run against.
type SnapshotSource interface {
	LatestSnapshot(portfolioID string) (*domain.PortfolioSnapshot, error)
}

// ThresholdSource yields the effective alert limits.
type ThresholdSource interface {
	Thresholds() settings.AlertThresholds
}

// Handler handles alert HTTP requests
type Handler struct {
	monitor     *alerts.Monitor
	assessments AssessmentSource
	snapshots   SnapshotSource
	limits      ThresholdSource
	log         zerolog.Logger
}

// NewHandler creates a new alerts handler
func NewHandler(monitor *alerts.Monitor, assessments AssessmentSource, snapshots SnapshotSource, limits ThresholdSource, log zerolog.Logger) *Handler {
	return &Handler{
		monitor:     monitor,
		assessments: assessments,
		snapshots:   snapshots,
		limits:      limits,
		log:         log.With().Str("handler", "alerts").Logger(),
	}
}

// HandleEvaluate runs the monitor against the latest stored assessment.
// The assessment before it, when present, feeds the trend check.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		portfolioID = "main"
	}

	recent, err := h.assessments.ListByPortfolio(portfolioID, 2)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to load assessments")
		h.writeError(w, http.StatusInternalServerError, "failed to load assessments")
		return
	}
	if len(recent) == 0 {
		h.writeError(w, http.StatusNotFound, "no assessment found for portfolio")
		return
	}

	current := recent[0]
	var previous *domain.RiskAssessment
	if len(recent) > 1 {
		previous = &recent[1]
	}

	var weights map[string]float64
	snap, err := h.snapshots.LatestSnapshot(portfolioID)
	if err != nil {
		h.log.Debug().Err(err).Str("portfolio_id", portfolioID).Msg("No snapshot for per-asset checks")
	} else if snap != nil {
		weights = snap.Weights()
	}

	result := h.monitor.Check(current.Metrics, weights, previous, h.limits.Thresholds())

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id":    portfolioID,
		"assessment_id":   current.ID,
		"assessed_at":     current.AssessedAt,
		"alerts":          result.Alerts,
		"recommendations": result.Recommendations,
	})
}

// HandleThresholds returns the effective limits after the risk tolerance
// adjustment.
func (h *Handler) HandleThresholds(w http.ResponseWriter, r *http.Request) {
	limits := h.limits.Thresholds()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"var_1d_limit":        limits.VaR1Day,
		"score_limit":         limits.OverallScore,
		"concentration_limit": limits.SingleAssetWeight,
		"volatility_limit":    limits.Volatility,
		"score_trend_delta":   limits.ScoreTrendDelta,
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
