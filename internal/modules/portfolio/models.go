package portfolio

import "github.com/aristath/bastion/internal/domain"

// AssetProfile carries per-symbol classification and scoring coefficients.
// Symbols without a profile fall back to asset-class defaults downstream.
type AssetProfile struct {
	Symbol               string            `json:"symbol"`
	AssetClass           domain.AssetClass `json:"asset_class"`
	LiquidityCoefficient float64           `json:"liquidity_coefficient"` // 0 = illiquid, 1 = deep market
	CreditCoefficient    float64           `json:"credit_coefficient"`    // 0 = no counterparty risk, 1 = severe
	UpdatedAt            string            `json:"updated_at"`
}

// SnapshotRequest is the API payload for building a portfolio snapshot.
type SnapshotRequest struct {
	PortfolioID string                 `json:"portfolio_id"`
	UserID      string                 `json:"user_id"`
	Currency    domain.Currency        `json:"currency"`
	Positions   []domain.AssetPosition `json:"positions"`
}
