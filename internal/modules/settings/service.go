package settings

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
)

// AlertThresholds are the limits the threshold monitor compares metrics
// against. Values are already adjusted for the configured risk tolerance.
type AlertThresholds struct {
	VaR1Day           float64 // fraction of portfolio value
	OverallScore      float64 // 0-100
	SingleAssetWeight float64 // fraction of portfolio value
	Volatility        float64 // annualized
	ScoreTrendDelta   float64 // score points vs previous assessment
}

// RiskParams are the engine inputs the settings database tunes at runtime
type RiskParams struct {
	Confidence          float64 // VaR/ES confidence level, in (0, 1)
	Lookback            string  // annualization window label, e.g. "30d"
	PeriodsPerYear      float64
	RiskFreeRate        float64
	Simulations         int // Monte Carlo draws
	Seed                uint64
	EWMASpan            int
	MinHistoryDays      int
	Benchmark           string
	OperationalBaseline float64 // flat operational risk score
}

// ScoreWeights blend the normalized risk components into the overall score
type ScoreWeights struct {
	VaR           float64
	ES            float64
	Concentration float64
	Volatility    float64
	StressBlend   float64 // applied at the top level against worst stress loss
}

// Normalize scales the component weights to sum to 1 and clamps the stress
// blend into [0, 1]. Degenerate weights fall back to the defaults.
func (w ScoreWeights) Normalize() ScoreWeights {
	sum := w.VaR + w.ES + w.Concentration + w.Volatility
	if sum <= 0 {
		w.VaR = SettingDefaults["weight_var"].(float64)
		w.ES = SettingDefaults["weight_es"].(float64)
		w.Concentration = SettingDefaults["weight_concentration"].(float64)
		w.Volatility = SettingDefaults["weight_volatility"].(float64)
		sum = w.VaR + w.ES + w.Concentration + w.Volatility
	}
	w.VaR /= sum
	w.ES /= sum
	w.Concentration /= sum
	w.Volatility /= sum

	if w.StressBlend < 0 {
		w.StressBlend = 0
	}
	if w.StressBlend > 1 {
		w.StressBlend = 1
	}
	return w
}

// GradeBands are the upper score bounds of each risk grade, ascending.
// A score below A grades "A", below B grades "B", and so on; at or above
// D grades "F".
type GradeBands struct {
	A float64
	B float64
	C float64
	D float64
}

// Ascending reports whether the bands are strictly ordered
func (b GradeBands) Ascending() bool {
	return b.A < b.B && b.B < b.C && b.C < b.D
}

// Service provides typed access to settings with defaults applied.
// It layers risk-tolerance adjustment on top of the raw repository values
// so callers always see effective configuration.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// Repo exposes the underlying repository for raw key access
func (s *Service) Repo() *Repository {
	return s.repo
}

// RiskTolerance returns the configured tolerance slider, clamped to [0, 1]
func (s *Service) RiskTolerance() float64 {
	tolerance, err := s.repo.GetFloat("risk_tolerance", defaultFloat("risk_tolerance"))
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read risk_tolerance, using default")
		return defaultFloat("risk_tolerance")
	}
	if tolerance < 0 {
		return 0
	}
	if tolerance > 1 {
		return 1
	}
	return tolerance
}

// Thresholds returns the alert thresholds scaled by risk tolerance.
// At tolerance 0.5 the baselines apply unchanged; a conservative user
// (tolerance 0) tightens every limit by 25%, a risk-taker (tolerance 1)
// loosens them by 25%.
func (s *Service) Thresholds() AlertThresholds {
	factor := 0.75 + 0.5*s.RiskTolerance()

	return AlertThresholds{
		VaR1Day:           s.getFloat("alert_var_1d_limit") * factor,
		OverallScore:      s.getFloat("alert_score_limit") * factor,
		SingleAssetWeight: s.getFloat("alert_concentration_limit") * factor,
		Volatility:        s.getFloat("alert_volatility_limit") * factor,
		ScoreTrendDelta:   s.getFloat("alert_score_trend_delta"),
	}
}

// Weights returns the normalized score aggregation weights
func (s *Service) Weights() ScoreWeights {
	weights := ScoreWeights{
		VaR:           s.getFloat("weight_var"),
		ES:            s.getFloat("weight_es"),
		Concentration: s.getFloat("weight_concentration"),
		Volatility:    s.getFloat("weight_volatility"),
		StressBlend:   s.getFloat("stress_blend"),
	}
	return weights.Normalize()
}

// Bands returns the grade bands, falling back to defaults when the stored
// values are not strictly ascending
func (s *Service) Bands() GradeBands {
	bands := GradeBands{
		A: s.getFloat("grade_band_a"),
		B: s.getFloat("grade_band_b"),
		C: s.getFloat("grade_band_c"),
		D: s.getFloat("grade_band_d"),
	}
	if !bands.Ascending() {
		s.log.Warn().
			Float64("a", bands.A).
			Float64("b", bands.B).
			Float64("c", bands.C).
			Float64("d", bands.D).
			Msg("Grade bands not ascending, using defaults")
		return GradeBands{
			A: defaultFloat("grade_band_a"),
			B: defaultFloat("grade_band_b"),
			C: defaultFloat("grade_band_c"),
			D: defaultFloat("grade_band_d"),
		}
	}
	return bands
}

// RiskParams returns the engine tuning values with the registered defaults
// layered under whatever the settings database stores.
func (s *Service) RiskParams() RiskParams {
	confidence := s.getFloat("risk_confidence")
	if confidence <= 0 || confidence >= 1 {
		s.log.Warn().Float64("risk_confidence", confidence).Msg("Confidence out of range, using default")
		confidence = defaultFloat("risk_confidence")
	}
	return RiskParams{
		Confidence:          confidence,
		Lookback:            s.getString("risk_lookback"),
		PeriodsPerYear:      s.getFloat("periods_per_year"),
		RiskFreeRate:        s.getFloat("risk_free_rate"),
		Simulations:         int(s.getFloat("mc_simulations")),
		Seed:                uint64(s.getFloat("mc_seed")),
		EWMASpan:            int(s.getFloat("ewma_span")),
		MinHistoryDays:      int(s.getFloat("min_history_days")),
		Benchmark:           s.getString("benchmark_symbol"),
		OperationalBaseline: s.getFloat("operational_baseline"),
	}
}

// GetAll returns every known setting with stored values layered over the
// defaults. Numeric settings come back as float64, string settings as-is.
func (s *Service) GetAll() (map[string]interface{}, error) {
	stored, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(SettingDefaults))
	for key, def := range SettingDefaults {
		result[key] = def
	}
	for key, raw := range stored {
		if StringSettings[key] {
			result[key] = raw
			continue
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			result[key] = f
		} else {
			result[key] = raw
		}
	}
	return result, nil
}

// Set validates and stores a setting value. Unknown keys are rejected so a
// typo in the API cannot silently create dead configuration.
func (s *Service) Set(key string, value interface{}) error {
	if _, known := SettingDefaults[key]; !known {
		return fmt.Errorf("unknown setting: %s", key)
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case float64:
		str = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		str = strconv.FormatBool(v)
	case nil:
		return fmt.Errorf("setting %s: value is required", key)
	default:
		return fmt.Errorf("setting %s: unsupported value type %T", key, value)
	}

	if StringSettings[key] {
		// String settings accept any string payload
	} else if _, err := strconv.ParseFloat(str, 64); err != nil {
		return fmt.Errorf("setting %s: expected a numeric value, got %q", key, str)
	}

	var description *string
	if desc, ok := SettingDescriptions[key]; ok {
		description = &desc
	}
	return s.repo.Set(key, str, description)
}

// getString reads a string setting with its registered default
func (s *Service) getString(key string) string {
	def, _ := SettingDefaults[key].(string)
	value, err := s.repo.Get(key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to read setting, using default")
		return def
	}
	if value == nil || *value == "" {
		return def
	}
	return *value
}

// getFloat reads a float setting with its registered default
func (s *Service) getFloat(key string) float64 {
	value, err := s.repo.GetFloat(key, defaultFloat(key))
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to read setting, using default")
		return defaultFloat(key)
	}
	return value
}

// defaultFloat looks up a numeric default from SettingDefaults
func defaultFloat(key string) float64 {
	if v, ok := SettingDefaults[key].(float64); ok {
		return v
	}
	return 0
}
