// Package risk implements the assessment engine core: VaR triangulation,
// expected shortfall, performance ratios, correlation estimation and
// exposure scoring, fanned out concurrently and joined into one
// RiskMetrics snapshot per call.
package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/correlation"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/settings"
	"github.com/aristath/bastion/pkg/formulas"
)

// VaR horizons reported on every metrics snapshot, in days.
const (
	horizon1Day  = 1
	horizon5Day  = 5
	horizon30Day = 30
)

// minObservations is the shortest return series the statistics accept.
const minObservations = 2

// Fallback coefficients for symbols without a stored profile. Liquidity
// reads 1 = deep market; credit reads 1 = severe counterparty risk.
var classLiquidity = map[domain.AssetClass]float64{
	domain.AssetClassCash:        1.00,
	domain.AssetClassStablecoin:  0.95,
	domain.AssetClassCryptoMajor: 0.90,
	domain.AssetClassEquity:      0.85,
	domain.AssetClassBond:        0.70,
	domain.AssetClassCommodity:   0.60,
	domain.AssetClassCryptoAlt:   0.50,
	domain.AssetClassDeFi:        0.40,
	domain.AssetClassUnknown:     0.30,
}

var classCredit = map[domain.AssetClass]float64{
	domain.AssetClassCash:        0.05,
	domain.AssetClassStablecoin:  0.15,
	domain.AssetClassCryptoMajor: 0.10,
	domain.AssetClassEquity:      0.10,
	domain.AssetClassBond:        0.20,
	domain.AssetClassCommodity:   0.15,
	domain.AssetClassCryptoAlt:   0.30,
	domain.AssetClassDeFi:        0.50,
	domain.AssetClassUnknown:     0.40,
}

// ProfileSource resolves stored per-symbol scoring profiles.
type ProfileSource interface {
	GetBySymbols(symbols []string) (map[string]portfolio.AssetProfile, error)
}

// Service computes the independent risk metrics for one snapshot per call.
// The stages share no mutable state, so one Service serves concurrent
// assessments.
type Service struct {
	correlations *correlation.Service
	profiles     ProfileSource
	log          zerolog.Logger
}

// NewService creates a new risk engine service
func NewService(correlations *correlation.Service, profiles ProfileSource, log zerolog.Logger) *Service {
	return &Service{
		correlations: correlations,
		profiles:     profiles,
		log:          log.With().Str("service", "risk").Logger(),
	}
}

// Input bundles the resolved collaborator data for one assessment. The
// caller fetches the series up front; inside the engine only the profile
// lookup and the correlation predictor can fail, and both degrade to
// defaults instead of failing the call.
type Input struct {
	Snapshot  *domain.PortfolioSnapshot
	History   map[string][]float64 // daily closes per symbol, oldest first
	Benchmark []float64            // benchmark closes, oldest first; may be nil
	Params    settings.RiskParams
}

// VaRBreakdown is the calculate_var output: the three method estimates,
// their mean as the recommendation, and the matching expected shortfall.
type VaRBreakdown struct {
	Confidence        float64            `json:"confidence"`
	HorizonDays       float64            `json:"horizon_days"`
	Observations      int                `json:"observations"`
	Methods           formulas.VaRResult `json:"methods"`
	ExpectedShortfall float64            `json:"expected_shortfall"`
}

// CalculateVaR triangulates Value at Risk over the historical, parametric
// and Monte Carlo methods. Out-of-range confidence or horizon values fall
// back to the configured defaults.
func (s *Service) CalculateVaR(returns []float64, confidence, horizonDays float64, params settings.RiskParams) VaRBreakdown {
	params = withDefaults(params)
	if confidence <= 0 || confidence >= 1 {
		confidence = params.Confidence
	}
	if horizonDays <= 0 {
		horizonDays = horizon1Day
	}
	return VaRBreakdown{
		Confidence:        confidence,
		HorizonDays:       horizonDays,
		Observations:      len(returns),
		Methods:           formulas.CalculateVaR(returns, confidence, horizonDays, params.Simulations, params.Seed),
		ExpectedShortfall: formulas.ExpectedShortfall(returns, confidence),
	}
}

// ComputeMetrics fans the independent stages out over goroutines, joins
// them, and assembles one RiskMetrics snapshot. The reasons list names every
// input that fell back to a default; the error is reserved for contract
// violations by the caller (nil snapshot, negative quantities or values).
func (s *Service) ComputeMetrics(in Input) (domain.RiskMetrics, []string, error) {
	if in.Snapshot == nil {
		return domain.RiskMetrics{}, nil, fmt.Errorf("snapshot is required")
	}
	for _, p := range in.Snapshot.Positions {
		if p.Quantity < 0 {
			return domain.RiskMetrics{}, nil, fmt.Errorf("position %s: negative quantity %v", p.Symbol, p.Quantity)
		}
		if p.Value < 0 {
			return domain.RiskMetrics{}, nil, fmt.Errorf("position %s: negative value %v", p.Symbol, p.Value)
		}
	}

	params := withDefaults(in.Params)
	weights := in.Snapshot.Weights()
	symbols := sortedSymbols(weights)
	reasons := &degradedSet{}

	// Derive per-symbol returns once; the portfolio series and the
	// correlation predictor both consume the same closes.
	returnsBySymbol := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		rets := formulas.CalculateReturns(in.History[symbol])
		if len(rets) < minObservations {
			reasons.add(fmt.Sprintf("insufficient history for %s", symbol))
			continue
		}
		returnsBySymbol[symbol] = rets
	}

	portfolioReturns := formulas.PortfolioReturns(returnsBySymbol, weights)
	if len(portfolioReturns) < minObservations && len(symbols) > 0 {
		reasons.add("portfolio return series too short, loss metrics report conservative defaults")
	}
	benchmarkReturns := formulas.CalculateReturns(in.Benchmark)

	var (
		wg       sync.WaitGroup
		loss     lossFigures
		perf     performanceFigures
		corr     correlation.Result
		exposure exposureFigures
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		loss = s.lossFigures(portfolioReturns, params)
	}()
	go func() {
		defer wg.Done()
		perf = s.performanceFigures(portfolioReturns, benchmarkReturns, params)
		// An empty portfolio is a clean degenerate case; the benchmark
		// only matters once there are positions to measure against it.
		if len(symbols) > 0 && len(benchmarkReturns) < minObservations {
			reasons.add("benchmark series absent, beta and alpha use neutral defaults")
		}
	}()
	go func() {
		defer wg.Done()
		if len(symbols) == 0 {
			return
		}
		corr = s.correlations.Estimate(symbols, in.History)
		if corr.Degraded {
			reasons.add("correlation predictor degraded to the identity fallback")
		}
	}()
	go func() {
		defer wg.Done()
		exposure = s.exposureFigures(symbols, weights, in.Snapshot.Positions, reasons)
	}()
	wg.Wait()

	metrics := domain.RiskMetrics{
		Timestamp:         time.Now().UTC(),
		CorrelationAssets: corr.Assets,
		CorrelationMatrix: corr.Matrix,
		VaR1Day:           loss.var1d,
		VaR5Day:           loss.var5d,
		VaR30Day:          loss.var30d,
		ExpectedShortfall: loss.expectedShortfall,
		SharpeRatio:       perf.sharpe,
		SortinoRatio:      perf.sortino,
		MaxDrawdown:       perf.maxDrawdown,
		CalmarRatio:       perf.calmar,
		Beta:              perf.beta,
		Alpha:             perf.alpha,
		Volatility:        perf.volatility,
		EWMAVolatility:    perf.ewmaVolatility,
		AnnualizedReturn:  perf.annualizedReturn,
		ConcentrationRisk: exposure.concentration,
		LiquidityRisk:     exposure.liquidity,
		CreditRisk:        exposure.credit,
		OperationalRisk:   params.OperationalBaseline,
	}
	metrics.MarketRisk = math.Min(100, metrics.Volatility*100)

	degraded := reasons.list()
	s.log.Debug().
		Int("positions", len(in.Snapshot.Positions)).
		Int("observations", len(portfolioReturns)).
		Float64("var_1d", metrics.VaR1Day).
		Float64("volatility", metrics.Volatility).
		Int("degraded_inputs", len(degraded)).
		Msg("Metrics computed")

	return metrics, degraded, nil
}

type lossFigures struct {
	var1d, var5d, var30d float64
	expectedShortfall    float64
}

func (s *Service) lossFigures(returns []float64, params settings.RiskParams) lossFigures {
	return lossFigures{
		var1d:             formulas.CalculateVaR(returns, params.Confidence, horizon1Day, params.Simulations, params.Seed).Recommended,
		var5d:             formulas.CalculateVaR(returns, params.Confidence, horizon5Day, params.Simulations, params.Seed).Recommended,
		var30d:            formulas.CalculateVaR(returns, params.Confidence, horizon30Day, params.Simulations, params.Seed).Recommended,
		expectedShortfall: formulas.ExpectedShortfall(returns, params.Confidence),
	}
}

type performanceFigures struct {
	annualizedReturn float64
	volatility       float64
	ewmaVolatility   float64
	sharpe           float64
	sortino          float64
	maxDrawdown      float64
	calmar           float64
	beta             float64
	alpha            float64
}

func (s *Service) performanceFigures(portfolioReturns, benchmarkReturns []float64, params settings.RiskParams) performanceFigures {
	f := performanceFigures{
		annualizedReturn: formulas.AnnualizedReturn(portfolioReturns, formulas.YearFraction(params.Lookback)),
		volatility:       formulas.AnnualizedVolatility(portfolioReturns, params.PeriodsPerYear),
		ewmaVolatility:   formulas.EWMAVolatility(portfolioReturns, params.EWMASpan, params.PeriodsPerYear),
		sharpe:           formulas.SharpeRatio(portfolioReturns, params.RiskFreeRate, params.PeriodsPerYear),
		sortino:          formulas.SortinoRatio(portfolioReturns, params.RiskFreeRate, params.PeriodsPerYear),
		maxDrawdown:      formulas.MaxDrawdown(portfolioReturns),
	}
	f.calmar = formulas.CalmarRatio(f.annualizedReturn, f.maxDrawdown)
	p, b := alignTails(portfolioReturns, benchmarkReturns)
	f.beta, f.alpha = formulas.BetaAlpha(p, b, params.PeriodsPerYear)
	return f
}

type exposureFigures struct {
	concentration float64
	liquidity     float64
	credit        float64
}

// exposureFigures scores concentration, liquidity and credit over the
// position weights. An empty portfolio scores zero across the board.
func (s *Service) exposureFigures(symbols []string, weights map[string]float64, positions []domain.AssetPosition, reasons *degradedSet) exposureFigures {
	if len(symbols) == 0 {
		return exposureFigures{}
	}

	aligned := make([]float64, len(symbols))
	for i, symbol := range symbols {
		aligned[i] = weights[symbol]
	}

	classes := make(map[string]domain.AssetClass, len(positions))
	for _, p := range positions {
		classes[p.Symbol] = p.AssetClass
	}

	var profiles map[string]portfolio.AssetProfile
	if s.profiles != nil {
		var err error
		profiles, err = s.profiles.GetBySymbols(symbols)
		if err != nil {
			s.log.Warn().Err(err).Msg("Asset profile lookup failed, using class defaults")
			reasons.add("asset profiles unavailable, class default coefficients in use")
		}
	}

	liquidity := make([]float64, len(symbols))
	credit := make([]float64, len(symbols))
	for i, symbol := range symbols {
		liquidity[i], credit[i] = coefficientsFor(symbol, classes[symbol], profiles)
	}

	return exposureFigures{
		concentration: formulas.HHI(aligned) * 100,
		liquidity:     (1 - formulas.WeightedCoefficient(aligned, liquidity)) * 100,
		credit:        formulas.WeightedCoefficient(aligned, credit) * 100,
	}
}

// coefficientsFor reads the stored profile when present, else the class
// fallback tables.
func coefficientsFor(symbol string, class domain.AssetClass, profiles map[string]portfolio.AssetProfile) (liquidity, credit float64) {
	if profile, ok := profiles[symbol]; ok {
		return clamp01(profile.LiquidityCoefficient), clamp01(profile.CreditCoefficient)
	}
	liq, ok := classLiquidity[class]
	if !ok {
		liq = classLiquidity[domain.AssetClassUnknown]
	}
	cred, ok := classCredit[class]
	if !ok {
		cred = classCredit[domain.AssetClassUnknown]
	}
	return liq, cred
}

// degradedSet collects degraded-input reasons from concurrent stages.
type degradedSet struct {
	mu      sync.Mutex
	reasons []string
}

func (d *degradedSet) add(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
}

func (d *degradedSet) list() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.reasons...)
}

// withDefaults fills unset tuning values so direct engine calls behave like
// settings-sourced ones.
func withDefaults(p settings.RiskParams) settings.RiskParams {
	if p.Confidence <= 0 || p.Confidence >= 1 {
		p.Confidence = 0.95
	}
	if p.Lookback == "" {
		p.Lookback = formulas.DefaultLookback
	}
	if p.PeriodsPerYear <= 0 {
		p.PeriodsPerYear = 365
	}
	if p.Simulations <= 0 {
		p.Simulations = 10000
	}
	if p.EWMASpan <= 0 {
		p.EWMASpan = 20
	}
	if p.MinHistoryDays <= 0 {
		p.MinHistoryDays = 30
	}
	if p.OperationalBaseline < 0 {
		p.OperationalBaseline = 0
	}
	return p
}

func sortedSymbols(weights map[string]float64) []string {
	symbols := make([]string, 0, len(weights))
	for symbol := range weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// alignTails trims both series to their common most-recent window.
func alignTails(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
