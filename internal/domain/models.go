// Package domain provides core domain models and types.
package domain

import "time"

// Currency represents a currency code
type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyUSDT Currency = "USDT"
	CurrencyTEST Currency = "TEST" // For research mode
)

// AssetClass buckets assets for liquidity, credit and stress-shock lookups
type AssetClass string

const (
	AssetClassCryptoMajor AssetClass = "crypto_major" // BTC, ETH tier
	AssetClassCryptoAlt   AssetClass = "crypto_alt"   // everything else on-chain
	AssetClassStablecoin  AssetClass = "stablecoin"
	AssetClassDeFi        AssetClass = "defi"
	AssetClassEquity      AssetClass = "equity"
	AssetClassBond        AssetClass = "bond"
	AssetClassCommodity   AssetClass = "commodity"
	AssetClassCash        AssetClass = "cash"
	AssetClassUnknown     AssetClass = "unknown"
)

// AssetPosition represents a single holding inside a snapshot
type AssetPosition struct {
	Symbol     string     `json:"symbol"`
	AssetClass AssetClass `json:"asset_class"`
	Quantity   float64    `json:"quantity"`
	UnitPrice  float64    `json:"unit_price"`
	Value      float64    `json:"value"`  // quantity * unit_price, filled during valuation
	Weight     float64    `json:"weight"` // value / total_value, filled during valuation
}

// PortfolioSnapshot is the engine's input: the holdings of one portfolio at
// one instant. The engine never mutates a snapshot; each assessment call
// receives a fresh one from the caller.
type PortfolioSnapshot struct {
	Timestamp   time.Time       `json:"timestamp"`
	PortfolioID string          `json:"portfolio_id"`
	UserID      string          `json:"user_id"`
	Currency    Currency        `json:"currency"`
	Positions   []AssetPosition `json:"positions"`
	TotalValue  float64         `json:"total_value"`
}

// Weights returns the position weights keyed by symbol. Zero total value
// yields an empty map so weight-derived metrics degrade to zero.
func (s *PortfolioSnapshot) Weights() map[string]float64 {
	weights := make(map[string]float64, len(s.Positions))
	if s.TotalValue <= 0 {
		return weights
	}
	for _, p := range s.Positions {
		weights[p.Symbol] = p.Value / s.TotalValue
	}
	return weights
}

// RiskMetrics is the output snapshot of one assessment, immutable once
// produced. All var_* figures and the expected shortfall are non-negative
// loss fractions; overall_risk_score is in [0, 100].
type RiskMetrics struct {
	Timestamp         time.Time   `json:"timestamp"`
	RiskGrade         string      `json:"risk_grade"`
	CorrelationAssets []string    `json:"correlation_assets,omitempty"` // row/column order of the matrix
	CorrelationMatrix [][]float64 `json:"correlation_matrix,omitempty"`
	VaR1Day           float64     `json:"var_1d"`
	VaR5Day           float64     `json:"var_5d"`
	VaR30Day          float64     `json:"var_30d"`
	ExpectedShortfall float64     `json:"expected_shortfall"`
	SharpeRatio       float64     `json:"sharpe_ratio"`
	SortinoRatio      float64     `json:"sortino_ratio"`
	MaxDrawdown       float64     `json:"max_drawdown"`
	CalmarRatio       float64     `json:"calmar_ratio"`
	Beta              float64     `json:"beta"`
	Alpha             float64     `json:"alpha"`
	Volatility        float64     `json:"volatility"`      // annualized
	EWMAVolatility    float64     `json:"ewma_volatility"` // reacts faster to recent turbulence
	AnnualizedReturn  float64     `json:"annualized_return"`
	ConcentrationRisk float64     `json:"concentration_risk"` // 0-100
	LiquidityRisk     float64     `json:"liquidity_risk"`     // 0-100
	CreditRisk        float64     `json:"credit_risk"`        // 0-100
	MarketRisk        float64     `json:"market_risk"`        // 0-100
	OperationalRisk   float64     `json:"operational_risk"`   // 0-100
	OverallRiskScore  float64     `json:"overall_risk_score"` // 0-100, higher is riskier
}

// RiskAssessment is the persisted unit handed to external collaborators.
// Created once per assessment request, immutable after creation, superseded
// (never mutated) by later assessments.
type RiskAssessment struct {
	AssessedAt      time.Time      `json:"assessed_at"`
	ID              string         `json:"id"`
	PortfolioID     string         `json:"portfolio_id"`
	UserID          string         `json:"user_id"`
	Metrics         RiskMetrics    `json:"metrics"`
	StressResults   []StressResult `json:"stress_results"`
	Recommendations []string       `json:"recommendations"`
	Degraded        bool           `json:"degraded"`                   // true when fallbacks were used
	DegradedReasons []string       `json:"degraded_reasons,omitempty"` // which inputs degraded
}

// Money represents a monetary value with currency
type Money struct {
	Currency Currency `json:"currency"`
	Amount   float64  `json:"amount"`
}

// NewMoney creates a new Money value
func NewMoney(amount float64, currency Currency) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}
