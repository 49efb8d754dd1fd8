package domain

// CorrelationPredictor estimates a cross-asset correlation matrix from
// historical return series.
// This interface breaks the circular dependency between the correlation
// module and its model implementations, and lets callers inject research
// models without touching the engine.
//
// Predict returns a matrix whose row i and column i correspond to
// symbols[i]. Implementations may fail (missing data, model error); the
// correlation service recovers by falling back to the identity predictor.
type CorrelationPredictor interface {
	// Name identifies the predictor in logs and degraded-mode flags
	Name() string

	// Predict estimates the correlation matrix for the given symbols
	Predict(symbols []string, history map[string][]float64) ([][]float64, error)
}

// ScenarioProvider supplies the stress scenario catalog.
// The catalog is externally supplied configuration, not a hard-coded
// constant, so tests and deployments can swap it independently.
type ScenarioProvider interface {
	// Scenarios returns the full catalog in stable order
	Scenarios() []StressScenario
}

// AssessmentReader provides read access to persisted assessments without
// creating a dependency on the assessment package. The threshold monitor
// uses it to compare the current result against the previous one for
// trend alerts; it never edits past assessments.
type AssessmentReader interface {
	// GetLatest returns the most recent assessment for a portfolio, or
	// nil when none has been persisted yet (not an error)
	GetLatest(portfolioID string) (*RiskAssessment, error)
}

// PriceHistoryProvider serves stored close-price series for a symbol.
// This interface breaks the circular dependency between the assessment
// orchestrator and the history package.
type PriceHistoryProvider interface {
	// GetCloses returns up to limit closes for the symbol, oldest first.
	// A symbol with no stored history returns an empty series, not an
	// error; downstream calculators degrade on short series.
	GetCloses(symbol string, limit int) ([]float64, error)
}
