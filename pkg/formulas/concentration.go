package formulas

// HHI calculates the Herfindahl-Hirschman concentration index: the sum of
// squared position weights. For n equally weighted positions the index is
// exactly 1/n; a single-position portfolio scores 1.
func HHI(weights []float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w * w
	}
	return sum
}

// WeightedCoefficient computes the weight-averaged coefficient over
// positions, used for liquidity and credit scoring where each asset class
// carries a coefficient in [0,1]. Slices must be aligned; mismatched input
// returns 0.
func WeightedCoefficient(weights, coefficients []float64) float64 {
	if len(weights) == 0 || len(weights) != len(coefficients) {
		return 0
	}

	sum := 0.0
	for i, w := range weights {
		sum += w * coefficients[i]
	}
	return sum
}
