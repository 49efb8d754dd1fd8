// Package handlers provides HTTP handlers for system settings management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/bastion/internal/events"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CredentialRefresher defines the interface for refreshing market data client credentials
type CredentialRefresher interface {
	RefreshCredentials() error
}

// CacheManager defines the interface for the calculation cache maintenance endpoints
type CacheManager interface {
	Stats() (entries int, expired int, err error)
	Clear() error
}

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service             *settings.Service
	credentialRefresher CredentialRefresher
	cacheManager        CacheManager
	eventBus            *events.Bus
	log                 zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, eventBus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		eventBus: eventBus,
		log:      log.With().Str("handler", "settings").Logger(),
	}
}

// SetCredentialRefresher sets the credential refresher (for dependency injection)
func (h *Handler) SetCredentialRefresher(refresher CredentialRefresher) {
	h.credentialRefresher = refresher
}

// SetCacheManager sets the calculation cache manager (for dependency injection)
func (h *Handler) SetCacheManager(manager CacheManager) {
	h.cacheManager = manager
}

// RegisterRoutes registers settings routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/thresholds", h.HandleGetThresholds)
		r.Get("/risk-tolerance", h.HandleGetRiskTolerance)
		r.Get("/cache-stats", h.HandleGetCacheStats)
		r.Post("/reset-cache", h.HandleResetCache)
		r.Put("/{key}", h.HandleUpdate)
	})
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get all settings")
		http.Error(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(all); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode settings response")
	}
}

// HandleUpdate handles PUT /api/settings/{key}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	var update settings.SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Set(key, update.Value); err != nil {
		h.log.Error().
			Err(err).
			Str("key", key).
			Interface("value", update.Value).
			Msg("Failed to update setting")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Refresh the market data client if this was a credential update
	if key == "market_data_api_key" && h.credentialRefresher != nil {
		if err := h.credentialRefresher.RefreshCredentials(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to refresh market data credentials after update")
		} else {
			h.log.Info().Msg("Market data credentials refreshed after settings update")
		}
	}

	if h.eventBus != nil {
		h.eventBus.Emit(events.SettingsChanged, "settings", map[string]interface{}{
			"key":   key,
			"value": update.Value,
		})
	}

	// Return updated value
	result := map[string]interface{}{key: update.Value}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleGetThresholds handles GET /api/settings/thresholds
// Returns the effective configuration after risk tolerance adjustment,
// which is what the threshold monitor actually compares against.
func (h *Handler) HandleGetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds := h.service.Thresholds()
	weights := h.service.Weights()
	bands := h.service.Bands()

	response := map[string]interface{}{
		"risk_tolerance": h.service.RiskTolerance(),
		"thresholds": map[string]float64{
			"var_1d":            thresholds.VaR1Day,
			"overall_score":     thresholds.OverallScore,
			"single_asset":      thresholds.SingleAssetWeight,
			"volatility":        thresholds.Volatility,
			"score_trend_delta": thresholds.ScoreTrendDelta,
		},
		"weights": map[string]float64{
			"var":           weights.VaR,
			"es":            weights.ES,
			"concentration": weights.Concentration,
			"stress_blend":  weights.StressBlend,
		},
		"grade_bands": map[string]float64{
			"a": bands.A,
			"b": bands.B,
			"c": bands.C,
			"d": bands.D,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleGetRiskTolerance handles GET /api/settings/risk-tolerance
func (h *Handler) HandleGetRiskTolerance(w http.ResponseWriter, r *http.Request) {
	response := settings.RiskToleranceResponse{RiskTolerance: h.service.RiskTolerance()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleGetCacheStats handles GET /api/settings/cache-stats
func (h *Handler) HandleGetCacheStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"entries": 0,
		"expired": 0,
	}

	if h.cacheManager != nil {
		entries, expired, err := h.cacheManager.Stats()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to read cache stats")
			http.Error(w, "Failed to read cache stats", http.StatusInternalServerError)
			return
		}
		response["entries"] = entries
		response["expired"] = expired
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleResetCache handles POST /api/settings/reset-cache
func (h *Handler) HandleResetCache(w http.ResponseWriter, r *http.Request) {
	if h.cacheManager != nil {
		if err := h.cacheManager.Clear(); err != nil {
			h.log.Error().Err(err).Msg("Failed to clear calculation cache")
			http.Error(w, "Failed to clear cache", http.StatusInternalServerError)
			return
		}
	}

	h.log.Info().Msg("Calculation cache cleared")

	response := map[string]string{"status": "ok"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
