package formulas

import (
	"math"
)

// AnnualizedReturn compounds per-period returns and annualizes the result
// over the given fraction of a year:
//
//	((1+r1)·(1+r2)·...·(1+rN))^(1/yearFraction) - 1
//
// yearFraction comes from the lookback label ("30d" → 30/365, see
// YearFraction). Empty series or non-positive yearFraction returns 0; a
// wealth path that hits or crosses zero returns -1 (total loss) since the
// power rule is undefined there.
func AnnualizedReturn(returns []float64, yearFraction float64) float64 {
	if len(returns) == 0 || yearFraction <= 0 {
		return 0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= (1 + r)
	}

	if cumulative <= 0 {
		return -1
	}

	return math.Pow(cumulative, 1.0/yearFraction) - 1
}

// SharpeRatio calculates the annualized Sharpe ratio
//
//	Sharpe = mean(excess) / std(excess) × sqrt(periods per year)
//
// where excess returns subtract the periodic risk-free rate. Returns 0 when
// the denominator is 0 or the series is too short.
func SharpeRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	excess := ExcessReturns(returns, riskFreeRate, periodsPerYear)
	sigma := StdDev(excess)
	if sigma == 0 {
		return 0
	}

	return Mean(excess) / sigma * math.Sqrt(periodsPerYear)
}

// SortinoRatio calculates the annualized Sortino ratio: the Sharpe numerator
// over the downside deviation (standard deviation of only the negative
// excess returns). Returns 0 when there are no downside observations.
func SortinoRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	excess := ExcessReturns(returns, riskFreeRate, periodsPerYear)

	var downsideSquaredSum float64
	downsideCount := 0
	for _, e := range excess {
		if e < 0 {
			downsideSquaredSum += e * e
			downsideCount++
		}
	}

	if downsideCount == 0 {
		return 0
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation == 0 {
		return 0
	}

	return Mean(excess) / downsideDeviation * math.Sqrt(periodsPerYear)
}

// MaxDrawdown builds the cumulative-product wealth curve from returns,
// tracks the running maximum, and reports the largest relative decline from
// a peak as a positive fraction (0.25 = 25% below the peak).
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	wealth := 1.0
	peak := 1.0
	maxDrawdown := 0.0

	for _, r := range returns {
		wealth *= (1 + r)
		if wealth > peak {
			peak = wealth
		}
		if peak > 0 {
			drawdown := (peak - wealth) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}

// CalmarRatio is annualized return over maximum drawdown; 0 when the
// drawdown is 0.
func CalmarRatio(annualizedReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return annualizedReturn / maxDrawdown
}

// BetaAlpha regresses portfolio returns on benchmark returns:
//
//	beta  = cov(portfolio, benchmark) / var(benchmark)
//	alpha = annualized portfolio mean - beta × annualized benchmark mean
//
// Absent or misaligned benchmark data (length mismatch, fewer than 2
// observations, zero benchmark variance) yields the neutral defaults
// beta = 1, alpha = 0.
func BetaAlpha(portfolio, benchmark []float64, periodsPerYear float64) (beta, alpha float64) {
	if len(benchmark) < 2 || len(portfolio) != len(benchmark) {
		return 1, 0
	}

	benchVariance := Variance(benchmark)
	if benchVariance == 0 {
		return 1, 0
	}

	beta = Covariance(portfolio, benchmark) / benchVariance
	alpha = Mean(portfolio)*periodsPerYear - beta*Mean(benchmark)*periodsPerYear
	return beta, alpha
}
