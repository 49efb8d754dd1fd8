package formulas

import (
	"strconv"
	"strings"
)

// DefaultLookback is the lookback label assumed when a request does not
// specify one.
const DefaultLookback = "30d"

// YearFraction parses a lookback label like "7d", "30d", "26w", "6m" or
// "1y" into the fraction of a year it spans ("30d" → 30/365). Unknown or
// malformed labels fall back to the default 30-day window so a bad label
// degrades instead of failing an assessment.
func YearFraction(label string) float64 {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		label = DefaultLookback
	}

	unit := label[len(label)-1:]
	n, err := strconv.Atoi(label[:len(label)-1])
	if err != nil || n <= 0 {
		return 30.0 / 365.0
	}

	switch unit {
	case "d":
		return float64(n) / 365.0
	case "w":
		return float64(n) * 7.0 / 365.0
	case "m":
		return float64(n) / 12.0
	case "y":
		return float64(n)
	default:
		return 30.0 / 365.0
	}
}
