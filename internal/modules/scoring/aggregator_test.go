package scoring

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/bastion/internal/modules/settings"
)

func defaultWeights() settings.ScoreWeights {
	return settings.ScoreWeights{
		VaR:           0.35,
		ES:            0.30,
		Concentration: 0.25,
		Volatility:    0.10,
		StressBlend:   0.25,
	}.Normalize()
}

func defaultBands() settings.GradeBands {
	return settings.GradeBands{A: 20, B: 40, C: 60, D: 80}
}

func TestScoreZeroInputs(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	score, comp := agg.Score(Inputs{}, defaultWeights())

	assert.Equal(t, 0.0, score)
	assert.Equal(t, Components{}, comp)
}

func TestScoreSaturatedInputs(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	score, comp := agg.Score(Inputs{
		VaR1Day:            0.50, // far past the 10% full scale
		ExpectedShortfall:  0.60,
		ConcentrationRisk:  150, // clamps to 100
		Volatility:         2.0,
		WorstStressLossPct: 100,
	}, defaultWeights())

	assert.Equal(t, 100.0, score)
	assert.Equal(t, 100.0, comp.VaR)
	assert.Equal(t, 100.0, comp.ES)
	assert.Equal(t, 100.0, comp.Concentration)
	assert.Equal(t, 100.0, comp.Volatility)
	assert.Equal(t, 100.0, comp.WorstStress)
}

func TestScoreWeightedBlend(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	in := Inputs{
		VaR1Day:            0.05, // component 50
		ExpectedShortfall:  0.06, // component 40
		ConcentrationRisk:  30,
		Volatility:         0.60, // component 60
		WorstStressLossPct: 80,
	}

	score, comp := agg.Score(in, defaultWeights())

	assert.Equal(t, 50.0, comp.VaR)
	assert.Equal(t, 40.0, comp.ES)
	assert.Equal(t, 30.0, comp.Concentration)
	assert.Equal(t, 60.0, comp.Volatility)
	assert.Equal(t, 80.0, comp.WorstStress)

	// base = 50*.35 + 40*.30 + 30*.25 + 60*.10 = 43
	// score = 43*.75 + 80*.25 = 52.25
	assert.InDelta(t, 52.25, score, 1e-9)
}

func TestScoreStressBlendRaisesScore(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	calm := Inputs{VaR1Day: 0.02, ExpectedShortfall: 0.03, ConcentrationRisk: 25, Volatility: 0.4}
	stressed := calm
	stressed.WorstStressLossPct = 90

	calmScore, _ := agg.Score(calm, defaultWeights())
	stressedScore, _ := agg.Score(stressed, defaultWeights())

	assert.Greater(t, stressedScore, calmScore)
}

func TestScoreDeterministic(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	in := Inputs{VaR1Day: 0.031, ExpectedShortfall: 0.044, ConcentrationRisk: 41.7, Volatility: 0.55, WorstStressLossPct: 33.3}

	first, _ := agg.Score(in, defaultWeights())
	second, _ := agg.Score(in, defaultWeights())
	assert.Equal(t, first, second)
}

func TestScoreUsesNormalizedWeights(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	in := Inputs{VaR1Day: 0.10} // VaR component 100, everything else 0

	// Raw weights that normalize to VaR-only.
	weights := settings.ScoreWeights{VaR: 7, ES: 0, Concentration: 0, Volatility: 0, StressBlend: 0}
	score, _ := agg.Score(in, weights)
	assert.Equal(t, 100.0, score)
}

func TestGradeBandBoundaries(t *testing.T) {
	bands := defaultBands()

	tests := []struct {
		score float64
		grade string
	}{
		{0, "A"},
		{10, "A"},
		{19.99, "A"},
		{20, "B"}, // boundary lands on exactly one side
		{39.99, "B"},
		{40, "C"},
		{59.99, "C"},
		{60, "D"},
		{79.99, "D"},
		{80, "F"},
		{100, "F"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.grade, Grade(tt.score, bands), "score %v", tt.score)
	}
}

func TestGradeIsPureFunctionOfScore(t *testing.T) {
	bands := defaultBands()

	// Integer-valued and float-valued forms of the same score grade alike.
	assert.Equal(t, Grade(10, bands), Grade(10.0, bands))
	for score := 0.0; score <= 100; score += 0.25 {
		assert.Equal(t, Grade(score, bands), Grade(score, bands))
	}
}
