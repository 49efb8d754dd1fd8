package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYearFraction(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  float64
	}{
		{"thirty days", "30d", 30.0 / 365.0},
		{"one week", "7d", 7.0 / 365.0},
		{"weeks unit", "26w", 26.0 * 7.0 / 365.0},
		{"six months", "6m", 0.5},
		{"one year", "1y", 1.0},
		{"two years", "2y", 2.0},
		{"uppercase accepted", "90D", 90.0 / 365.0},
		{"padded label", " 14d ", 14.0 / 365.0},
		{"empty falls back to default", "", 30.0 / 365.0},
		{"garbage falls back to default", "banana", 30.0 / 365.0},
		{"unknown unit falls back", "30x", 30.0 / 365.0},
		{"zero count falls back", "0d", 30.0 / 365.0},
		{"negative count falls back", "-5d", 30.0 / 365.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, YearFraction(tt.label), 1e-12)
		})
	}
}
