// Package scoring combines the independent risk figures into the overall
// 0-100 risk score and its letter grade.
package scoring

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/settings"
)

// Component full scales. A sub-score saturates at 100 when its raw input
// reaches the scale value.
const (
	// VaRFullScale is the 1-day VaR loss fraction that maps to a
	// component score of 100. A portfolio expecting to lose a tenth of
	// its value overnight is maximally risky on this axis.
	VaRFullScale = 0.10

	// ESFullScale is the expected-shortfall loss fraction mapping to
	// 100. ES is at least VaR by construction, so its scale runs half
	// again deeper to keep the two components comparable.
	ESFullScale = 0.15

	// VolatilityFullScale is the annualized volatility mapping to 100.
	VolatilityFullScale = 1.0
)

// Components are the normalized 0-100 sub-scores entering the blend.
type Components struct {
	VaR           float64 `json:"var"`
	ES            float64 `json:"es"`
	Concentration float64 `json:"concentration"`
	Volatility    float64 `json:"volatility"`
	WorstStress   float64 `json:"worst_stress"`
}

// Inputs are the raw risk figures to aggregate. VaR1Day and
// ExpectedShortfall are loss fractions; ConcentrationRisk and
// WorstStressLossPct are already on the 0-100 scale; Volatility is
// annualized.
type Inputs struct {
	VaR1Day            float64
	ExpectedShortfall  float64
	ConcentrationRisk  float64
	Volatility         float64
	WorstStressLossPct float64
}

// Aggregator blends normalized risk components into one score.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a risk score aggregator.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("service", "scoring").Logger(),
	}
}

// Score computes the overall risk score in [0, 100]. The component blend
// (VaR, ES, concentration, volatility) is weighted by the normalized
// weights, then blended at the top level with the worst stress loss:
//
//	score = base·(1-stress_blend) + worst_stress·stress_blend
//
// The result is deterministic for fixed inputs and weights.
func (a *Aggregator) Score(in Inputs, weights settings.ScoreWeights) (float64, Components) {
	weights = weights.Normalize()

	comp := Components{
		VaR:           round2(normalize(in.VaR1Day, VaRFullScale)),
		ES:            round2(normalize(in.ExpectedShortfall, ESFullScale)),
		Concentration: round2(clamp100(in.ConcentrationRisk)),
		Volatility:    round2(normalize(in.Volatility, VolatilityFullScale)),
		WorstStress:   round2(clamp100(in.WorstStressLossPct)),
	}

	base := comp.VaR*weights.VaR +
		comp.ES*weights.ES +
		comp.Concentration*weights.Concentration +
		comp.Volatility*weights.Volatility

	score := base*(1-weights.StressBlend) + comp.WorstStress*weights.StressBlend
	score = round2(clamp100(score))

	a.log.Debug().
		Float64("score", score).
		Float64("var_component", comp.VaR).
		Float64("es_component", comp.ES).
		Float64("concentration_component", comp.Concentration).
		Float64("volatility_component", comp.Volatility).
		Float64("worst_stress", comp.WorstStress).
		Msg("Aggregated risk score")

	return score, comp
}

// Grade maps a score onto its letter grade via the configured bands.
// The step function is pure: each score, boundary values included, maps
// to exactly one grade. A score below band A grades "A", at or above
// band D grades "F".
func Grade(score float64, bands settings.GradeBands) string {
	switch {
	case score < bands.A:
		return "A"
	case score < bands.B:
		return "B"
	case score < bands.C:
		return "C"
	case score < bands.D:
		return "D"
	default:
		return "F"
	}
}

// normalize maps a raw value onto 0-100 against its full scale.
func normalize(value, fullScale float64) float64 {
	if fullScale <= 0 || value <= 0 {
		return 0
	}
	return clamp100(value / fullScale * 100)
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
