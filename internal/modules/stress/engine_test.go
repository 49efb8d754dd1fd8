package stress

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/domain"
)

func testSnapshot() *domain.PortfolioSnapshot {
	return &domain.PortfolioSnapshot{
		Timestamp:   time.Now().UTC(),
		PortfolioID: "main",
		Currency:    domain.CurrencyUSD,
		Positions: []domain.AssetPosition{
			{Symbol: "BTC", AssetClass: domain.AssetClassCryptoMajor, Quantity: 1, UnitPrice: 60000, Value: 60000, Weight: 0.6},
			{Symbol: "DOGE", AssetClass: domain.AssetClassCryptoAlt, Quantity: 100000, UnitPrice: 0.3, Value: 30000, Weight: 0.3},
			{Symbol: "USDC", AssetClass: domain.AssetClassStablecoin, Quantity: 10000, UnitPrice: 1, Value: 10000, Weight: 0.1},
		},
		TotalValue: 100000,
	}
}

func TestRunScenarioShockFallbackChain(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	scenario := domain.StressScenario{
		Name: "chain",
		Shocks: map[string]float64{
			"BTC":        -0.10, // exact symbol wins
			"crypto_alt": -0.50, // class fallback
			"all":        -0.01, // catch-all
		},
	}

	result := engine.RunScenario(testSnapshot(), scenario)

	// BTC 60000*0.10 + DOGE 30000*0.50 + USDC 10000*0.01
	assert.InDelta(t, 6000.0, result.PerAssetImpact["BTC"], 1e-9)
	assert.InDelta(t, 15000.0, result.PerAssetImpact["DOGE"], 1e-9)
	assert.InDelta(t, 100.0, result.PerAssetImpact["USDC"], 1e-9)
	assert.InDelta(t, 21100.0, result.LossAmount, 1e-9)
	assert.InDelta(t, 78900.0, result.StressedValue, 1e-9)
	assert.InDelta(t, 21.1, result.LossPercentage, 1e-9)
}

func TestRunScenarioUnmatchedAssetContributesZero(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	scenario := domain.StressScenario{
		Name:   "crypto_only",
		Shocks: map[string]float64{"crypto_major": -0.2},
	}

	result := engine.RunScenario(testSnapshot(), scenario)

	assert.InDelta(t, 12000.0, result.PerAssetImpact["BTC"], 1e-9)
	assert.Equal(t, 0.0, result.PerAssetImpact["DOGE"])
	assert.Equal(t, 0.0, result.PerAssetImpact["USDC"])
	assert.InDelta(t, 12000.0, result.LossAmount, 1e-9)
}

func TestRunScenarioZeroShocksZeroLoss(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	scenario := domain.StressScenario{
		Name:   "calm",
		Shocks: map[string]float64{"all": 0},
	}

	result := engine.RunScenario(testSnapshot(), scenario)

	assert.Equal(t, 0.0, result.LossPercentage)
	assert.Equal(t, result.InitialValue, result.StressedValue)
	assert.Equal(t, 0.0, result.LossAmount)
}

func TestRunScenarioZeroValuePortfolio(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	snap := &domain.PortfolioSnapshot{PortfolioID: "empty", TotalValue: 0}
	scenario := domain.StressScenario{
		Name:   "crash",
		Shocks: map[string]float64{"all": -0.5},
	}

	result := engine.RunScenario(snap, scenario)

	assert.Equal(t, 0.0, result.LossPercentage)
	assert.Equal(t, 0.0, result.LossAmount)
	assert.Equal(t, 0.0, result.StressedValue)
}

func TestRunScenarioLossesSumExactly(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	scenario := domain.StressScenario{
		Name: "mixed",
		Shocks: map[string]float64{
			"crypto_major": -0.123456789,
			"crypto_alt":   -0.33,
			"stablecoin":   -0.01,
		},
	}

	result := engine.RunScenario(testSnapshot(), scenario)

	sum := 0.0
	for _, impact := range result.PerAssetImpact {
		sum += impact
	}
	assert.InDelta(t, result.LossAmount, sum, 1e-6)
	assert.InDelta(t, result.InitialValue-result.LossAmount, result.StressedValue, 1e-6)
}

func TestRunAllDefaultCatalog(t *testing.T) {
	catalog, err := NewCatalog("", zerolog.Nop())
	require.NoError(t, err)

	engine := NewEngine(zerolog.Nop())
	results := engine.RunAll(testSnapshot(), catalog.Scenarios())

	require.Len(t, results, len(catalog.Scenarios()))
	for _, r := range results {
		assert.GreaterOrEqual(t, r.LossAmount, 0.0)
		assert.LessOrEqual(t, r.StressedValue, r.InitialValue)
	}

	// A pure-crypto-heavy book must lose more in the crypto bear than in
	// the rate shock.
	byName := make(map[string]domain.StressResult, len(results))
	for _, r := range results {
		byName[r.ScenarioName] = r
	}
	assert.Greater(t, byName["crypto_bear_market"].LossPercentage, byName["interest_rate_shock"].LossPercentage)
}

func TestWorstLoss(t *testing.T) {
	results := []domain.StressResult{
		{ScenarioName: "a", LossPercentage: 12.5},
		{ScenarioName: "b", LossPercentage: 40.25},
		{ScenarioName: "c", LossPercentage: 3.0},
	}
	assert.Equal(t, 40.25, WorstLoss(results))
	assert.Equal(t, 0.0, WorstLoss(nil))
}
