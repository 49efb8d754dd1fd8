// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/correlation"
	"github.com/aristath/bastion/internal/modules/risk"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/pkg/formulas"
)

// HistorySource yields recent daily closes per symbol, oldest first.
type HistorySource interface {
	GetCloses(symbol string, limit int) ([]float64, error)
}

// AssessmentSource resolves the latest stored assessment for a portfolio.
type AssessmentSource interface {
	GetLatest(portfolioID string) (*domain.RiskAssessment, error)
}

// ParamsSource yields the current engine tuning values.
type ParamsSource interface {
	RiskParams() settings.RiskParams
}

// Handler handles risk metrics HTTP requests
type Handler struct {
	engine       *risk.Service
	correlations *correlation.Service
	history      HistorySource
	assessments  AssessmentSource
	params       ParamsSource
	log          zerolog.Logger
}

// NewHandler creates a new risk metrics handler
func NewHandler(
	engine *risk.Service,
	correlations *correlation.Service,
	history HistorySource,
	assessments AssessmentSource,
	params ParamsSource,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		engine:       engine,
		correlations: correlations,
		history:      history,
		assessments:  assessments,
		params:       params,
		log:          log.With().Str("handler", "risk").Logger(),
	}
}

type varRequest struct {
	Returns     []float64 `json:"returns"`
	Symbol      string    `json:"symbol"`
	Confidence  float64   `json:"confidence"`
	HorizonDays float64   `json:"horizon_days"`
}

// HandleVaR triangulates VaR over an explicit return series or over a
// symbol's stored history when no series is posted.
func (h *Handler) HandleVaR(w http.ResponseWriter, r *http.Request) {
	var req varRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Confidence < 0 || req.Confidence >= 1 {
		h.writeError(w, http.StatusBadRequest, "confidence must be in [0, 1)")
		return
	}
	if req.HorizonDays < 0 {
		h.writeError(w, http.StatusBadRequest, "horizon_days must be positive")
		return
	}

	params := h.params.RiskParams()
	returns := req.Returns
	if len(returns) == 0 {
		if req.Symbol == "" {
			h.writeError(w, http.StatusBadRequest, "either returns or symbol is required")
			return
		}
		closes, err := h.history.GetCloses(req.Symbol, params.MinHistoryDays+1)
		if err != nil {
			h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to load history")
			h.writeError(w, http.StatusInternalServerError, "failed to load price history")
			return
		}
		returns = formulas.CalculateReturns(closes)
		if len(returns) == 0 {
			h.writeError(w, http.StatusNotFound, "no price history for symbol")
			return
		}
	}

	breakdown := h.engine.CalculateVaR(returns, req.Confidence, req.HorizonDays, params)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":             req.Symbol,
		"confidence":         breakdown.Confidence,
		"horizon_days":       breakdown.HorizonDays,
		"observations":       breakdown.Observations,
		"var":                breakdown.Methods,
		"expected_shortfall": breakdown.ExpectedShortfall,
	})
}

// HandleMetrics returns the metrics of the latest stored assessment. The
// scored view only exists after an assessment run, so this reads from the
// assessments ledger instead of recomputing.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		portfolioID = "main"
	}

	assessment, err := h.assessments.GetLatest(portfolioID)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to load assessment")
		h.writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	if assessment == nil {
		h.writeError(w, http.StatusNotFound, "no assessment found, run one first")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id":     portfolioID,
		"assessment_id":    assessment.ID,
		"assessed_at":      assessment.AssessedAt,
		"degraded":         assessment.Degraded,
		"degraded_reasons": assessment.DegradedReasons,
		"metrics":          assessment.Metrics,
	})
}

// HandleCorrelation estimates the correlation matrix for the requested
// symbols over their stored history.
func (h *Handler) HandleCorrelation(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}
	symbols := splitSymbols(raw)
	if len(symbols) < 2 {
		h.writeError(w, http.StatusBadRequest, "at least two symbols are required")
		return
	}

	params := h.params.RiskParams()
	days := params.MinHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 2 {
			h.writeError(w, http.StatusBadRequest, "days must be an integer >= 2")
			return
		}
		days = parsed
	}

	history := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		closes, err := h.history.GetCloses(symbol, days+1)
		if err != nil {
			h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load history")
			h.writeError(w, http.StatusInternalServerError, "failed to load price history")
			return
		}
		history[symbol] = closes
	}

	result := h.correlations.Estimate(symbols, history)
	h.writeJSON(w, http.StatusOK, result)
}

// splitSymbols parses a comma-separated symbol list, dropping empties and
// normalizing to upper case.
func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
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
