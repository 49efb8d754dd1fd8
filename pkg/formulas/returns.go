package formulas

// CalculateReturns converts prices to fractional returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// PortfolioReturns combines per-asset return series into a single weighted
// portfolio return series. Series are truncated to the shortest length so
// periods stay aligned. Weights are renormalized over the symbols present:
// a symbol whose history is missing passes its weight to the rest of the
// book instead of damping the blend toward zero and understating risk.
func PortfolioReturns(returns map[string][]float64, weights map[string]float64) []float64 {
	if len(returns) == 0 {
		return []float64{}
	}

	// Minimum length and total weight across the series actually present
	minLen := -1
	totalWeight := 0.0
	for symbol, rets := range returns {
		if minLen == -1 || len(rets) < minLen {
			minLen = len(rets)
		}
		totalWeight += weights[symbol]
	}

	if minLen <= 0 {
		return []float64{}
	}

	portfolioReturns := make([]float64, minLen)
	for i := 0; i < minLen; i++ {
		combined := 0.0
		for symbol, rets := range returns {
			combined += weights[symbol] * rets[i]
		}
		if totalWeight > 0 {
			combined /= totalWeight
		}
		portfolioReturns[i] = combined
	}

	return portfolioReturns
}

// ExcessReturns subtracts the periodic risk-free rate from each return.
// riskFreeRate is annual; periodsPerYear converts it to a per-period rate.
func ExcessReturns(returns []float64, riskFreeRate, periodsPerYear float64) []float64 {
	if periodsPerYear <= 0 {
		periodsPerYear = 1
	}

	periodic := riskFreeRate / periodsPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - periodic
	}
	return excess
}
