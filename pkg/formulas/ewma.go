package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// EWMAVolatility estimates annualized volatility from an exponentially
// weighted moving average of squared returns, reacting faster to recent
// turbulence than the plain sample estimate. span is the EMA period.
//
// Falls back to the plain annualized sample volatility when the series is
// shorter than the span.
func EWMAVolatility(returns []float64, span int, periodsPerYear float64) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	if span < 2 || len(returns) < span {
		return AnnualizedVolatility(returns, periodsPerYear)
	}

	squared := make([]float64, len(returns))
	for i, r := range returns {
		squared[i] = r * r
	}

	ema := talib.Ema(squared, span)
	last := ema[len(ema)-1]
	if math.IsNaN(last) || last < 0 {
		return AnnualizedVolatility(returns, periodsPerYear)
	}

	return math.Sqrt(last) * math.Sqrt(periodsPerYear)
}
