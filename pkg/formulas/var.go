package formulas

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// VaRResult holds Value-at-Risk estimates from the three methodologies.
// Recommended is the arithmetic mean of the three, which reduces exposure
// to any single method's model risk.
type VaRResult struct {
	Historical  float64 `json:"historical"`
	Parametric  float64 `json:"parametric"`
	MonteCarlo  float64 `json:"monte_carlo"`
	Recommended float64 `json:"recommended"`
}

// percentileIndex returns the index of the tail percentile in an
// ascending-sorted series of length n. For 95% confidence the index sits at
// the worst 5% boundary. Clamped to [0, n-1].
//
// The epsilon keeps float artifacts out of the floor: 10*(1-0.80)
// evaluates just under 2, and bare truncation would land one observation
// too deep in the tail.
func percentileIndex(n int, confidence float64) int {
	idx := int(math.Floor(float64(n)*(1.0-confidence) + 1e-9))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// HistoricalVaR calculates Value at Risk by historical simulation.
// Each observed return is scaled by sqrt(horizon) before taking the
// (1-confidence)-percentile of the scaled distribution; the result is the
// absolute value of that percentile, so it is always a non-negative loss
// fraction.
//
// Series with fewer than 2 observations return 0: downstream aggregation
// must still produce a result, so insufficient data degrades to the
// conservative default instead of failing.
func HistoricalVaR(returns []float64, confidence, horizon float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	scale := math.Sqrt(horizon)
	scaled := make([]float64, len(returns))
	for i, r := range returns {
		scaled[i] = r * scale
	}
	sort.Float64s(scaled)

	return math.Abs(scaled[percentileIndex(len(scaled), confidence)])
}

// ParametricVaR calculates Value at Risk under the variance-covariance
// (normal) assumption:
//
//	VaR = -(μ·horizon + z_{1-confidence}·σ·sqrt(horizon))
//
// where z is the inverse normal CDF. Floored at 0. Series with fewer than
// 2 observations return 0.
func ParametricVaR(returns []float64, confidence, horizon float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mu := Mean(returns)
	sigma := StdDev(returns)
	z := distuv.UnitNormal.Quantile(1.0 - confidence)

	v := -(mu*horizon + z*sigma*math.Sqrt(horizon))
	if v < 0 {
		return 0
	}
	return v
}

// MonteCarloVaR calculates Value at Risk by simulation: simulations draws
// from Normal(μ·horizon, σ·sqrt(horizon)), then the same percentile rule as
// HistoricalVaR. The seed is an explicit parameter; runs with the same seed
// and inputs are bit-for-bit reproducible and no global RNG state is
// touched.
func MonteCarloVaR(returns []float64, confidence, horizon float64, simulations int, seed uint64) float64 {
	if len(returns) < 2 || simulations <= 0 {
		return 0
	}

	mu := Mean(returns)
	sigma := StdDev(returns)

	dist := distuv.Normal{
		Mu:    mu * horizon,
		Sigma: sigma * math.Sqrt(horizon),
		Src:   rand.NewPCG(seed, 0),
	}

	draws := make([]float64, simulations)
	for i := range draws {
		draws[i] = dist.Rand()
	}
	sort.Float64s(draws)

	return math.Abs(draws[percentileIndex(len(draws), confidence)])
}

// CalculateVaR runs all three VaR methodologies and averages them into the
// recommended estimate.
func CalculateVaR(returns []float64, confidence, horizon float64, simulations int, seed uint64) VaRResult {
	r := VaRResult{
		Historical: HistoricalVaR(returns, confidence, horizon),
		Parametric: ParametricVaR(returns, confidence, horizon),
		MonteCarlo: MonteCarloVaR(returns, confidence, horizon, simulations, seed),
	}
	r.Recommended = (r.Historical + r.Parametric + r.MonteCarlo) / 3.0
	return r
}
