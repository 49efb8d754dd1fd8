// Package correlation estimates cross-asset correlation matrices.
//
// The estimator is polymorphic over a predictor capability: a model-backed
// predictor computes sample correlations from recent price history, and a
// deterministic identity predictor serves as the fallback when no model is
// available or a prediction fails. The service normalizes every matrix it
// hands out, so downstream consumers can rely on symmetry, a unit diagonal,
// and entries in [-1, 1] no matter which predictor produced it.
package correlation

import (
	"fmt"

	"github.com/aristath/bastion/pkg/formulas"
)

// minReturnObservations is the smallest aligned return count the sample
// predictor accepts. Below this a correlation estimate is noise.
const minReturnObservations = 2

// SamplePredictor derives pairwise Pearson correlations from close-price
// history. Series are aligned on their most recent observations, so symbols
// with longer histories do not skew the estimate.
type SamplePredictor struct{}

// NewSamplePredictor creates the model-backed predictor.
func NewSamplePredictor() *SamplePredictor {
	return &SamplePredictor{}
}

// Name identifies the predictor in logs and degraded-mode flags.
func (p *SamplePredictor) Name() string {
	return "sample"
}

// Predict computes the sample correlation matrix for the given symbols.
// history maps each symbol to its close prices, oldest first. Missing or
// too-short series fail the whole prediction; the caller falls back.
func (p *SamplePredictor) Predict(symbols []string, history map[string][]float64) ([][]float64, error) {
	n := len(symbols)
	if n == 0 {
		return [][]float64{}, nil
	}

	returns := make([][]float64, n)
	minLen := -1
	for i, symbol := range symbols {
		prices, ok := history[symbol]
		if !ok {
			return nil, fmt.Errorf("missing price history for %s", symbol)
		}
		r := formulas.CalculateReturns(prices)
		returns[i] = r
		if minLen < 0 || len(r) < minLen {
			minLen = len(r)
		}
	}

	if minLen < minReturnObservations {
		return nil, fmt.Errorf("insufficient price history: %d aligned observations (need at least %d)", minLen, minReturnObservations)
	}

	// Align on the most recent observations.
	for i := range returns {
		returns[i] = returns[i][len(returns[i])-minLen:]
	}

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			corr := formulas.Correlation(returns[i], returns[j])
			matrix[i][j] = corr
			matrix[j][i] = corr
		}
	}

	return matrix, nil
}

// IdentityPredictor returns the identity matrix, i.e. assumes no
// correlation between assets. It never fails, which makes it the
// terminal fallback in the degraded-mode chain.
type IdentityPredictor struct{}

// NewIdentityPredictor creates the fallback predictor.
func NewIdentityPredictor() *IdentityPredictor {
	return &IdentityPredictor{}
}

// Name identifies the predictor in logs and degraded-mode flags.
func (p *IdentityPredictor) Name() string {
	return "identity"
}

// Predict returns an n-by-n identity matrix for n symbols.
func (p *IdentityPredictor) Predict(symbols []string, _ map[string][]float64) ([][]float64, error) {
	n := len(symbols)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	return matrix, nil
}
