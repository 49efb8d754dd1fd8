// Package handlers provides HTTP handlers for stress testing.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/events"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/stress"
)

// SnapshotLoader resolves a portfolio ID to its latest stored snapshot.
type SnapshotLoader interface {
	LatestSnapshot(portfolioID string) (*domain.PortfolioSnapshot, error)
	BuildSnapshot(req portfolio.SnapshotRequest) (*domain.PortfolioSnapshot, error)
}

// Handler handles stress test HTTP requests
type Handler struct {
	catalog   *stress.Catalog
	engine    *stress.Engine
	snapshots SnapshotLoader
	bus       *events.Bus
	log       zerolog.Logger
}

// NewHandler creates a new stress handler
func NewHandler(catalog *stress.Catalog, engine *stress.Engine, snapshots SnapshotLoader, log zerolog.Logger) *Handler {
	return &Handler{
		catalog:   catalog,
		engine:    engine,
		snapshots: snapshots,
		log:       log.With().Str("handler", "stress").Logger(),
	}
}

// SetEventBus enables scenarios_changed emission on catalog reloads.
func (h *Handler) SetEventBus(bus *events.Bus) {
	h.bus = bus
}

// HandleListScenarios returns the loaded scenario catalog.
func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := h.catalog.Scenarios()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(scenarios),
		"scenarios": scenarios,
	})
}

// HandleReloadScenarios re-reads the catalog from its configured source.
func (h *Handler) HandleReloadScenarios(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Reload(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	scenarios := h.catalog.Scenarios()

	if h.bus != nil {
		h.bus.Emit(events.ScenariosChanged, "stress", map[string]interface{}{
			"action": "reload",
			"count":  len(scenarios),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"count":    len(scenarios),
	})
}

// runRequest selects the portfolio to stress. Inline positions take
// precedence; otherwise the latest stored snapshot for portfolio_id is
// used. An empty scenario name runs the whole catalog.
type runRequest struct {
	PortfolioID string                 `json:"portfolio_id"`
	Scenario    string                 `json:"scenario"`
	Positions   []domain.AssetPosition `json:"positions"`
}

// HandleRun applies stress scenarios to a portfolio.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.resolveSnapshot(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if snap == nil {
		h.writeError(w, http.StatusNotFound, "no snapshot stored for portfolio")
		return
	}

	scenarios := h.catalog.Scenarios()
	if req.Scenario != "" {
		scenario, ok := h.catalog.Get(req.Scenario)
		if !ok {
			h.writeError(w, http.StatusNotFound, "unknown scenario "+req.Scenario)
			return
		}
		scenarios = []domain.StressScenario{scenario}
	}

	results := h.engine.RunAll(snap, scenarios)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": snap.PortfolioID,
		"total_value":  snap.TotalValue,
		"worst_loss":   stress.WorstLoss(results),
		"results":      results,
	})
}

func (h *Handler) resolveSnapshot(req runRequest) (*domain.PortfolioSnapshot, error) {
	if len(req.Positions) > 0 {
		portfolioID := req.PortfolioID
		if portfolioID == "" {
			portfolioID = "adhoc"
		}
		return h.snapshots.BuildSnapshot(portfolio.SnapshotRequest{
			PortfolioID: portfolioID,
			Positions:   req.Positions,
		})
	}

	portfolioID := req.PortfolioID
	if portfolioID == "" {
		portfolioID = "main"
	}
	return h.snapshots.LatestSnapshot(portfolioID)
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
