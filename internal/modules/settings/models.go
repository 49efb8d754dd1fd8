package settings

// SettingDefaults holds all default values for configurable settings
var SettingDefaults = map[string]interface{}{
	// Risk tolerance slider (scales alert thresholds system-wide)
	"risk_tolerance": 0.5, // 0 = conservative, 0.5 = balanced, 1 = risk-taking

	// Core engine parameters
	"risk_confidence":  0.95,  // VaR/ES confidence level
	"risk_lookback":    "30d", // Annualization window label
	"periods_per_year": 365.0, // Daily crypto periodicity
	"risk_free_rate":   0.02,  // Annual risk-free rate for excess returns
	"mc_simulations":   10000.0,
	"mc_seed":          42.0, // Monte Carlo seed (explicit for reproducibility)
	"ewma_span":        20.0, // EMA period for reactive volatility
	"min_history_days": 30.0, // Preferred price history depth per symbol
	"benchmark_symbol": "BTC",

	// Operational risk has no market-data formula; it is a flat baseline
	// covering custody, key management and process risk.
	"operational_baseline": 15.0,

	// Score aggregation weights (normalized before use)
	"weight_var":           0.35,
	"weight_es":            0.30,
	"weight_concentration": 0.25,
	"weight_volatility":    0.10,
	"stress_blend":         0.25, // Share of the final score taken from worst stress loss

	// Risk grade bands (upper bounds, ascending)
	"grade_band_a": 20.0, // score < 20 -> A
	"grade_band_b": 40.0, // score < 40 -> B
	"grade_band_c": 60.0, // score < 60 -> C
	"grade_band_d": 80.0, // score < 80 -> D, else F

	// Alert thresholds (baseline values at risk_tolerance 0.5)
	"alert_var_1d_limit":        0.05, // 1-day VaR as fraction of value
	"alert_score_limit":         70.0, // Overall risk score
	"alert_concentration_limit": 0.40, // Single-asset weight
	"alert_volatility_limit":    0.80, // Annualized volatility
	"alert_score_trend_delta":   10.0, // Score jump vs previous assessment

	// Market data client
	"market_data_api_key":    "",
	"market_data_sync_limit": 90.0, // Days of history to backfill per sync

	// Cloudflare R2 backup settings
	"r2_account_id":            "",
	"r2_access_key_id":         "",
	"r2_secret_access_key":     "",
	"r2_bucket_name":           "",
	"r2_backup_enabled":        0.0,     // 1.0 = enabled, 0.0 = disabled
	"r2_backup_schedule":       "daily", // "daily", "weekly", or "monthly"
	"r2_backup_retention_days": 90.0,    // Days to keep backups (0 = keep forever)

	// Job scheduling intervals
	"job_assessment_minutes": 15.0, // Scheduled assessment sweep interval
	"job_sync_cycle_minutes": 15.0, // Market data sync interval
	"job_maintenance_hour":   3.0,  // Daily maintenance hour (0-23)
}

// StringSettings defines which settings should be treated as strings rather than floats
var StringSettings = map[string]bool{
	"risk_lookback":        true,
	"benchmark_symbol":     true,
	"market_data_api_key":  true,
	"r2_account_id":        true,
	"r2_access_key_id":     true,
	"r2_secret_access_key": true,
	"r2_bucket_name":       true,
	"r2_backup_schedule":   true,
}

// SettingDescriptions holds human-readable descriptions for all settings
var SettingDescriptions = map[string]string{
	"risk_tolerance":            "Risk tolerance level (0 = conservative, 0.5 = balanced, 1 = risk-taking). Scales every alert threshold: lower tolerance means alerts fire earlier.",
	"risk_confidence":           "Confidence level for VaR and expected shortfall (0.95 = 95%)",
	"mc_simulations":            "Number of Monte Carlo draws per VaR estimate",
	"mc_seed":                   "Seed for the Monte Carlo generator; identical seeds reproduce identical estimates",
	"operational_baseline":      "Flat operational risk score (0-100) covering custody and process risk",
	"weight_var":                "Weight of normalized VaR in the overall risk score",
	"weight_es":                 "Weight of normalized expected shortfall in the overall risk score",
	"weight_concentration":      "Weight of concentration risk in the overall risk score",
	"weight_volatility":         "Weight of annualized volatility in the overall risk score",
	"stress_blend":              "Fraction of the final score taken from the worst stress scenario loss",
	"alert_var_1d_limit":        "1-day VaR threshold as a fraction of portfolio value (0.05 = 5%)",
	"alert_concentration_limit": "Maximum single-asset weight before a concentration alert (0.40 = 40%)",
	"alert_volatility_limit":    "Annualized volatility threshold before a volatility alert",
}

// SettingUpdate represents a setting value update request
type SettingUpdate struct {
	Value interface{} `json:"value"`
}

// RiskToleranceResponse represents the risk tolerance response
type RiskToleranceResponse struct {
	RiskTolerance float64 `json:"risk_tolerance"`
}
