package stress

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/bastion/internal/domain"
)

// Engine applies shock scenarios to a portfolio snapshot. Results are
// computed with decimal arithmetic and banker's rounding at 8 places so
// losses line up exactly with the snapshot valuation.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a stress test engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("service", "stress").Logger(),
	}
}

// RunScenario applies one scenario to the snapshot. Each position loses
// value_i * |shock_i| where the shock resolves through the fallback chain
// symbol, asset class, "all"; an asset no rule matches loses nothing.
// A zero-value portfolio reports zero loss and zero loss percentage.
func (e *Engine) RunScenario(snap *domain.PortfolioSnapshot, scenario domain.StressScenario) domain.StressResult {
	initial := decimal.NewFromFloat(snap.TotalValue)
	totalLoss := decimal.Zero
	impacts := make(map[string]float64, len(snap.Positions))

	for _, p := range snap.Positions {
		shock := scenario.ShockFor(p.Symbol, p.AssetClass)
		loss := decimal.NewFromFloat(p.Value).
			Mul(decimal.NewFromFloat(shock).Abs()).
			RoundBank(8)
		impacts[p.Symbol], _ = loss.Float64()
		totalLoss = totalLoss.Add(loss)
	}

	totalLoss = totalLoss.RoundBank(8)
	stressed := initial.Sub(totalLoss).RoundBank(8)

	lossPct := 0.0
	if initial.IsPositive() {
		lossPct, _ = totalLoss.Div(initial).Mul(decimal.NewFromInt(100)).RoundBank(8).Float64()
	}

	initialValue, _ := initial.Float64()
	stressedValue, _ := stressed.Float64()
	lossAmount, _ := totalLoss.Float64()

	return domain.StressResult{
		ScenarioName:   scenario.Name,
		InitialValue:   initialValue,
		StressedValue:  stressedValue,
		LossAmount:     lossAmount,
		LossPercentage: lossPct,
		PerAssetImpact: impacts,
	}
}

// RunAll applies every scenario in catalog order.
func (e *Engine) RunAll(snap *domain.PortfolioSnapshot, scenarios []domain.StressScenario) []domain.StressResult {
	results := make([]domain.StressResult, 0, len(scenarios))
	for _, scenario := range scenarios {
		result := e.RunScenario(snap, scenario)
		results = append(results, result)

		e.log.Debug().
			Str("scenario", scenario.Name).
			Float64("loss_pct", result.LossPercentage).
			Msg("Applied stress scenario")
	}
	return results
}

// WorstLoss returns the largest loss percentage across results, 0 when
// there are none. The aggregator blends this into the overall score.
func WorstLoss(results []domain.StressResult) float64 {
	worst := 0.0
	for _, r := range results {
		if r.LossPercentage > worst {
			worst = r.LossPercentage
		}
	}
	return worst
}
