package formulas

import (
	"math"
	"sort"
)

// ExpectedShortfall calculates the mean loss beyond the VaR threshold
// (also known as CVaR). The threshold is the (1-confidence)-percentile of
// the return distribution; the tail is every return at or below it, and the
// result is the absolute mean of that tail. If the tail is empty the
// threshold itself is returned (as its absolute value), and an empty series
// returns 0.
func ExpectedShortfall(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	threshold := sorted[percentileIndex(len(sorted), confidence)]

	sum := 0.0
	count := 0
	for _, r := range sorted {
		if r <= threshold {
			sum += r
			count++
		}
	}

	if count == 0 {
		return math.Abs(threshold)
	}

	return math.Abs(sum / float64(count))
}
