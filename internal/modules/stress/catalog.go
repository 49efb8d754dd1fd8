// Package stress applies hypothetical shock scenarios to portfolio
// holdings and reports the simulated loss. The scenario catalog is
// externally supplied configuration: it loads from a JSON file when one
// is configured and falls back to the embedded defaults, so deployments
// and tests can swap catalogs without touching code.
package stress

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
)

//go:embed scenarios.json
var defaultCatalog []byte

// Catalog holds the loaded stress scenarios. It implements
// domain.ScenarioProvider. Reload swaps the whole set atomically, so
// readers always see a consistent catalog.
type Catalog struct {
	mu        sync.RWMutex
	path      string
	scenarios []domain.StressScenario
	log       zerolog.Logger
}

// NewCatalog loads the scenario catalog. path may be empty, in which
// case the embedded default scenarios are used. A configured path that
// cannot be read or parsed is a configuration error, not a fallback case.
func NewCatalog(path string, log zerolog.Logger) (*Catalog, error) {
	c := &Catalog{
		path: path,
		log:  log.With().Str("component", "stress_catalog").Logger(),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog from its source. On error the previous
// catalog stays active.
func (c *Catalog) Reload() error {
	raw := defaultCatalog
	source := "embedded"

	if c.path != "" {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return fmt.Errorf("failed to read scenario catalog %s: %w", c.path, err)
		}
		raw = data
		source = c.path
	}

	var scenarios []domain.StressScenario
	if err := json.Unmarshal(raw, &scenarios); err != nil {
		return fmt.Errorf("failed to parse scenario catalog %s: %w", source, err)
	}
	if err := validateScenarios(scenarios); err != nil {
		return fmt.Errorf("invalid scenario catalog %s: %w", source, err)
	}

	c.mu.Lock()
	c.scenarios = scenarios
	c.mu.Unlock()

	c.log.Info().
		Int("scenarios", len(scenarios)).
		Str("source", source).
		Msg("Loaded stress scenario catalog")
	return nil
}

// Scenarios returns the full catalog in load order.
func (c *Catalog) Scenarios() []domain.StressScenario {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.StressScenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// Get returns the scenario with the given name.
func (c *Catalog) Get(name string) (domain.StressScenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return domain.StressScenario{}, false
}

func validateScenarios(scenarios []domain.StressScenario) error {
	if len(scenarios) == 0 {
		return fmt.Errorf("catalog is empty")
	}

	seen := make(map[string]bool, len(scenarios))
	for i, s := range scenarios {
		if s.Name == "" {
			return fmt.Errorf("scenario %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate scenario name %q", s.Name)
		}
		seen[s.Name] = true

		for key, shock := range s.Shocks {
			if math.IsNaN(shock) || math.IsInf(shock, 0) {
				return fmt.Errorf("scenario %q: shock %q is not finite", s.Name, key)
			}
			if math.Abs(shock) > 1 {
				return fmt.Errorf("scenario %q: shock %q exceeds 100%%", s.Name, key)
			}
		}
		if s.VolatilityMultiplier < 0 {
			return fmt.Errorf("scenario %q: negative volatility multiplier", s.Name)
		}
		if s.DurationPeriods < 0 {
			return fmt.Errorf("scenario %q: negative duration", s.Name)
		}
	}
	return nil
}
