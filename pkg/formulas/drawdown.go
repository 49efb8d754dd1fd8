package formulas

// DrawdownMetrics represents drawdown analysis over a value series
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`     // Largest decline from a peak (0.25 = 25%)
	CurrentDrawdown float64 `json:"current_drawdown"` // Current decline from the last peak
	PeriodsInDD     int     `json:"periods_in_drawdown"`
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
}

// WealthCurve converts a return series into a cumulative-product wealth
// curve starting from 1.0.
func WealthCurve(returns []float64) []float64 {
	curve := make([]float64, len(returns))
	wealth := 1.0
	for i, r := range returns {
		wealth *= (1 + r)
		curve[i] = wealth
	}
	return curve
}

// CalculateDrawdownMetrics reports peak, current value, and drawdown depth
// and duration over a series of portfolio values.
func CalculateDrawdownMetrics(values []float64) *DrawdownMetrics {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]
	peakIndex := 0
	currentValue := values[len(values)-1]

	for i, v := range values {
		if v > peak {
			peak = v
			peakIndex = i
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	currentDrawdown := 0.0
	if peak > 0 {
		currentDrawdown = (peak - currentValue) / peak
	}

	return &DrawdownMetrics{
		MaxDrawdown:     maxDrawdown,
		CurrentDrawdown: currentDrawdown,
		PeriodsInDD:     len(values) - 1 - peakIndex,
		PeakValue:       peak,
		CurrentValue:    currentValue,
	}
}
