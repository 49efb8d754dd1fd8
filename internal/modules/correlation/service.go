package correlation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
	"github.com/aristath/bastion/internal/modules/calculations"
)

// Result is one correlation estimate. Assets gives the row and column
// order of Matrix. Degraded is true when the primary predictor failed and
// the identity fallback was substituted.
type Result struct {
	Assets   []string    `json:"assets"`
	Matrix   [][]float64 `json:"matrix"`
	Source   string      `json:"source"`
	Degraded bool        `json:"degraded"`
}

// cachedMatrix holds a normalized correlation matrix for cache serialization.
// Symbols records the row order used at compute time; hits with a different
// request order are remapped rather than recomputed.
type cachedMatrix struct {
	Symbols []string    `msgpack:"symbols"`
	Matrix  [][]float64 `msgpack:"matrix"`
}

// Service estimates correlation matrices via an injected predictor with an
// identity fallback. Predictor failures never propagate: the service logs
// the condition, substitutes the fallback, and flags the result degraded.
type Service struct {
	predictor domain.CorrelationPredictor
	fallback  domain.CorrelationPredictor
	cache     *calculations.Cache
	log       zerolog.Logger
}

// NewService creates a correlation service around the given predictor.
// cache is optional; when nil every estimate is computed fresh.
func NewService(predictor domain.CorrelationPredictor, cache *calculations.Cache, log zerolog.Logger) *Service {
	return &Service{
		predictor: predictor,
		fallback:  NewIdentityPredictor(),
		cache:     cache,
		log:       log.With().Str("service", "correlation").Logger(),
	}
}

// Estimate produces a normalized correlation matrix for the given symbols.
// The returned matrix is always square, symmetric, unit-diagonal, with
// entries in [-1, 1]. Successful model predictions are cached; fallback
// results are not, so a recovered predictor is retried on the next call.
func (s *Service) Estimate(symbols []string, history map[string][]float64) Result {
	n := len(symbols)
	if n == 0 {
		return Result{Assets: []string{}, Matrix: [][]float64{}, Source: s.predictor.Name()}
	}

	hash := calculations.HashSymbols(symbols)
	if s.cache != nil {
		var cached cachedMatrix
		if s.cache.Get("correlation", hash, &cached) {
			if matrix, ok := remapMatrix(cached, symbols); ok {
				s.log.Debug().
					Int("num_assets", n).
					Str("hash", hash[:8]).
					Msg("Using cached correlation matrix")
				return Result{Assets: symbols, Matrix: matrix, Source: s.predictor.Name()}
			}
		}
	}

	matrix, err := s.predictor.Predict(symbols, history)
	if err == nil && !squareMatrix(matrix, n) {
		err = fmt.Errorf("predictor returned a %dx? matrix for %d symbols", len(matrix), n)
	}
	if err != nil {
		s.log.Warn().Err(err).
			Str("predictor", s.predictor.Name()).
			Int("num_assets", n).
			Msg("Correlation predictor failed, using identity fallback")

		fallback, fbErr := s.fallback.Predict(symbols, history)
		if fbErr != nil || !squareMatrix(fallback, n) {
			fallback = identity(n)
		}
		return Result{
			Assets:   symbols,
			Matrix:   Normalize(fallback),
			Source:   s.fallback.Name(),
			Degraded: true,
		}
	}

	normalized := Normalize(matrix)

	if s.cache != nil {
		entry := cachedMatrix{Symbols: symbols, Matrix: normalized}
		if err := s.cache.Set("correlation", hash, entry, calculations.TTLCorrelation); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache correlation matrix")
		}
	}

	return Result{Assets: symbols, Matrix: normalized, Source: s.predictor.Name()}
}

// Normalize forces the correlation matrix invariants on arbitrary predictor
// output: symmetrize as (M + Mᵀ)/2, set the diagonal to exactly 1.0, replace
// non-finite entries with 0, and clamp everything to [-1, 1]. The input is
// not modified.
func Normalize(matrix [][]float64) [][]float64 {
	n := len(matrix)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		out[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			v := (sanitize(matrix[i][j]) + sanitize(matrix[j][i])) / 2
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			out[i][j] = v
			out[j][i] = v
		}
	}
	return out
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func squareMatrix(matrix [][]float64, n int) bool {
	if len(matrix) != n {
		return false
	}
	for _, row := range matrix {
		if len(row) != n {
			return false
		}
	}
	return true
}

func identity(n int) [][]float64 {
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	return matrix
}

// remapMatrix reorders a cached matrix to the requested symbol order.
// The cache key is order-independent, so a hit may carry rows in a
// different order than the request. Returns false when the symbol sets
// differ, which forces a recompute.
func remapMatrix(cached cachedMatrix, symbols []string) ([][]float64, bool) {
	n := len(symbols)
	if len(cached.Symbols) != n || !squareMatrix(cached.Matrix, n) {
		return nil, false
	}

	index := make(map[string]int, n)
	for i, symbol := range cached.Symbols {
		index[symbol] = i
	}

	matrix := make([][]float64, n)
	for i, si := range symbols {
		ci, ok := index[si]
		if !ok {
			return nil, false
		}
		matrix[i] = make([]float64, n)
		for j, sj := range symbols {
			cj, ok := index[sj]
			if !ok {
				return nil, false
			}
			matrix[i][j] = cached.Matrix[ci][cj]
		}
	}
	return matrix, true
}
