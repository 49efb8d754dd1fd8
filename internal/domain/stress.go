package domain

// ShockAll is the catch-all shock key: a scenario entry under this key
// applies to any asset that has no symbol or asset-class specific shock.
const ShockAll = "all"

// StressScenario describes one hypothetical market event. Scenarios are
// immutable records loaded from the scenario catalog; shock values are
// fractional price moves (-0.40 = a 40% drop).
type StressScenario struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	Shocks               map[string]float64 `json:"shocks"` // symbol, asset class, or "all" -> shock
	CorrelationChange    float64            `json:"correlation_change"`
	VolatilityMultiplier float64            `json:"volatility_multiplier"`
	DurationPeriods      int                `json:"duration_periods"`
}

// ShockFor resolves the shock applied to one position using the fallback
// chain: exact symbol, then asset class, then "all". An asset no rule
// matches contributes zero shock.
func (s *StressScenario) ShockFor(symbol string, class AssetClass) float64 {
	if shock, ok := s.Shocks[symbol]; ok {
		return shock
	}
	if shock, ok := s.Shocks[string(class)]; ok {
		return shock
	}
	if shock, ok := s.Shocks[ShockAll]; ok {
		return shock
	}
	return 0
}

// StressResult is the outcome of applying one scenario to one portfolio.
// PerAssetImpact holds each position's loss amount; the per-asset losses
// sum to LossAmount.
type StressResult struct {
	ScenarioName   string             `json:"scenario_name"`
	InitialValue   float64            `json:"initial_value"`
	StressedValue  float64            `json:"stressed_value"`
	LossAmount     float64            `json:"loss_amount"`
	LossPercentage float64            `json:"loss_percentage"` // 0-100
	PerAssetImpact map[string]float64 `json:"per_asset_impact"`
}
