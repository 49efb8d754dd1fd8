package formulas

import (
	"math"
	"testing"
)

func TestWealthCurve(t *testing.T) {
	curve := WealthCurve([]float64{0.10, -0.50})
	expected := []float64{1.1, 0.55}
	if len(curve) != len(expected) {
		t.Fatalf("WealthCurve() length = %d, want %d", len(curve), len(expected))
	}
	for i := range expected {
		if math.Abs(curve[i]-expected[i]) > 1e-12 {
			t.Errorf("curve[%d] = %v, want %v", i, curve[i], expected[i])
		}
	}

	if len(WealthCurve(nil)) != 0 {
		t.Errorf("WealthCurve of empty returns should be empty")
	}
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	metrics := CalculateDrawdownMetrics([]float64{100, 110, 99, 105})
	if metrics == nil {
		t.Fatal("expected metrics, got nil")
	}

	if math.Abs(metrics.MaxDrawdown-0.10) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want 0.10", metrics.MaxDrawdown)
	}
	if math.Abs(metrics.CurrentDrawdown-5.0/110.0) > 1e-12 {
		t.Errorf("CurrentDrawdown = %v, want %v", metrics.CurrentDrawdown, 5.0/110.0)
	}
	if metrics.PeriodsInDD != 2 {
		t.Errorf("PeriodsInDD = %d, want 2", metrics.PeriodsInDD)
	}
	if metrics.PeakValue != 110 {
		t.Errorf("PeakValue = %v, want 110", metrics.PeakValue)
	}
	if metrics.CurrentValue != 105 {
		t.Errorf("CurrentValue = %v, want 105", metrics.CurrentValue)
	}

	if CalculateDrawdownMetrics([]float64{100}) != nil {
		t.Errorf("fewer than two values should yield nil")
	}
}

func TestCalculateDrawdownMetricsAtPeak(t *testing.T) {
	metrics := CalculateDrawdownMetrics([]float64{100, 105, 120})
	if metrics == nil {
		t.Fatal("expected metrics, got nil")
	}

	if metrics.MaxDrawdown != 0.0 {
		t.Errorf("MaxDrawdown = %v, want 0", metrics.MaxDrawdown)
	}
	if metrics.CurrentDrawdown != 0.0 {
		t.Errorf("CurrentDrawdown = %v, want 0", metrics.CurrentDrawdown)
	}
	if metrics.PeriodsInDD != 0 {
		t.Errorf("PeriodsInDD = %d, want 0", metrics.PeriodsInDD)
	}
}
