package domain

// AlertType identifies which tracked metric raised an alert
type AlertType string

const (
	AlertTypeVaRBreach     AlertType = "var_breach"
	AlertTypeRiskScore     AlertType = "risk_score"
	AlertTypeConcentration AlertType = "concentration"
	AlertTypeVolatility    AlertType = "volatility"
	AlertTypeRiskTrend     AlertType = "risk_trend" // score deteriorated vs the previous assessment
)

// Severity grades how far past its threshold a metric has moved
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert represents one threshold breach detected by the monitor
type Alert struct {
	Type         AlertType `json:"type"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Symbol       string    `json:"symbol,omitempty"` // set for per-asset alerts
	CurrentValue float64   `json:"current_value"`
	Threshold    float64   `json:"threshold"`
}

// MonitorResult is the monitor's output: the ordered alerts plus the
// recommendation strings derived from them. Both lists are empty when
// every tracked metric is within its threshold.
type MonitorResult struct {
	Alerts          []Alert  `json:"alerts"`
	Recommendations []string `json:"recommendations"`
}
