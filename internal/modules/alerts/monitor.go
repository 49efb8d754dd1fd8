// Package alerts compares assessment output against the configured limits
// and turns every breach into an alert plus a recommendation.
package alerts

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/settings"
)

// Monitor is a stateless comparator. Each call inspects one set of metrics
// against the limits; nothing is retained between calls.
type Monitor struct {
	log zerolog.Logger
}

// NewMonitor creates a new threshold monitor
func NewMonitor(log zerolog.Logger) *Monitor {
	return &Monitor{log: log.With().Str("service", "alerts").Logger()}
}

// Check compares the metrics, the per-asset weights and the previous
// assessment against the limits. Alerts come back in a fixed order: VaR,
// overall score, concentration (heaviest asset first), volatility, trend.
// Both lists are empty when every tracked metric is within its limit.
// A zero or negative limit disables that check; weights and previous may
// be nil, which skips the per-asset and trend checks respectively.
func (m *Monitor) Check(metrics domain.RiskMetrics, weights map[string]float64, previous *domain.RiskAssessment, limits settings.AlertThresholds) domain.MonitorResult {
	result := domain.MonitorResult{
		Alerts:          []domain.Alert{},
		Recommendations: []string{},
	}

	if limits.VaR1Day > 0 && metrics.VaR1Day > limits.VaR1Day {
		result.Alerts = append(result.Alerts, domain.Alert{
			Type:         domain.AlertTypeVaRBreach,
			Severity:     severityByRatio(metrics.VaR1Day, limits.VaR1Day),
			Message:      fmt.Sprintf("1-day VaR %.2f%% exceeds the %.2f%% limit", metrics.VaR1Day*100, limits.VaR1Day*100),
			CurrentValue: metrics.VaR1Day,
			Threshold:    limits.VaR1Day,
		})
		result.Recommendations = append(result.Recommendations,
			"Reduce position sizes or hedge to bring 1-day VaR back under the limit")
	}

	if limits.OverallScore > 0 && metrics.OverallRiskScore > limits.OverallScore {
		severity := domain.SeverityWarning
		if metrics.OverallRiskScore >= (limits.OverallScore+100)/2 {
			severity = domain.SeverityCritical
		}
		result.Alerts = append(result.Alerts, domain.Alert{
			Type:         domain.AlertTypeRiskScore,
			Severity:     severity,
			Message:      fmt.Sprintf("Overall risk score %.1f exceeds the %.1f limit", metrics.OverallRiskScore, limits.OverallScore),
			CurrentValue: metrics.OverallRiskScore,
			Threshold:    limits.OverallScore,
		})
		result.Recommendations = append(result.Recommendations,
			"Rebalance toward lower-risk assets to bring the overall score down")
	}

	for _, breach := range concentrationBreaches(weights, limits.SingleAssetWeight) {
		result.Alerts = append(result.Alerts, domain.Alert{
			Type:         domain.AlertTypeConcentration,
			Severity:     severityByRatio(breach.weight, limits.SingleAssetWeight),
			Message:      fmt.Sprintf("%s holds %.1f%% of the portfolio, above the %.1f%% limit", breach.symbol, breach.weight*100, limits.SingleAssetWeight*100),
			Symbol:       breach.symbol,
			CurrentValue: breach.weight,
			Threshold:    limits.SingleAssetWeight,
		})
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("Reduce allocation to %s", breach.symbol))
	}

	if limits.Volatility > 0 && metrics.Volatility > limits.Volatility {
		result.Alerts = append(result.Alerts, domain.Alert{
			Type:         domain.AlertTypeVolatility,
			Severity:     severityByRatio(metrics.Volatility, limits.Volatility),
			Message:      fmt.Sprintf("Annualized volatility %.1f%% exceeds the %.1f%% limit", metrics.Volatility*100, limits.Volatility*100),
			CurrentValue: metrics.Volatility,
			Threshold:    limits.Volatility,
		})
		result.Recommendations = append(result.Recommendations,
			"Shift weight toward lower-volatility assets")
	}

	if previous != nil && limits.ScoreTrendDelta > 0 {
		delta := metrics.OverallRiskScore - previous.Metrics.OverallRiskScore
		if delta >= limits.ScoreTrendDelta {
			result.Alerts = append(result.Alerts, domain.Alert{
				Type:         domain.AlertTypeRiskTrend,
				Severity:     domain.SeverityWarning,
				Message:      fmt.Sprintf("Risk score rose %.1f points since the previous assessment", delta),
				CurrentValue: delta,
				Threshold:    limits.ScoreTrendDelta,
			})
			result.Recommendations = append(result.Recommendations,
				"Review recent portfolio changes, risk has risen sharply since the previous assessment")
		}
	}

	if len(result.Alerts) > 0 {
		m.log.Warn().
			Int("alerts", len(result.Alerts)).
			Float64("score", metrics.OverallRiskScore).
			Msg("Risk thresholds breached")
	}

	return result
}

type weightBreach struct {
	symbol string
	weight float64
}

// concentrationBreaches returns every asset above the single-asset limit,
// heaviest first so the loudest offender leads the alert list.
func concentrationBreaches(weights map[string]float64, limit float64) []weightBreach {
	if limit <= 0 || len(weights) == 0 {
		return nil
	}
	var breaches []weightBreach
	for symbol, weight := range weights {
		if weight > limit {
			breaches = append(breaches, weightBreach{symbol: symbol, weight: weight})
		}
	}
	sort.Slice(breaches, func(i, j int) bool {
		if breaches[i].weight != breaches[j].weight {
			return breaches[i].weight > breaches[j].weight
		}
		return breaches[i].symbol < breaches[j].symbol
	})
	return breaches
}

// severityByRatio grades a breach by how far past its limit the value is.
func severityByRatio(value, limit float64) domain.Severity {
	if limit > 0 && value >= 2*limit {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}
