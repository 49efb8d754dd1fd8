package stress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogEmbeddedDefaults(t *testing.T) {
	catalog, err := NewCatalog("", zerolog.Nop())
	require.NoError(t, err)

	scenarios := catalog.Scenarios()
	require.NotEmpty(t, scenarios)

	// The default catalog must cover the four canonical events.
	names := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		names[s.Name] = true
	}
	assert.True(t, names["market_crash"])
	assert.True(t, names["crypto_bear_market"])
	assert.True(t, names["interest_rate_shock"])
	assert.True(t, names["liquidity_crisis"])
}

func TestCatalogDefaultsHaveDistinctMagnitudes(t *testing.T) {
	catalog, err := NewCatalog("", zerolog.Nop())
	require.NoError(t, err)

	crash, ok := catalog.Get("market_crash")
	require.True(t, ok)
	bear, ok := catalog.Get("crypto_bear_market")
	require.True(t, ok)

	assert.NotEqual(t, crash.Shocks["crypto_major"], bear.Shocks["crypto_major"])
	assert.NotEqual(t, crash.DurationPeriods, bear.DurationPeriods)
}

func TestCatalogLoadsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.json")
	content := `[{"name": "flat", "description": "nothing moves", "shocks": {"all": 0}, "duration_periods": 1}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalog, err := NewCatalog(path, zerolog.Nop())
	require.NoError(t, err)

	scenarios := catalog.Scenarios()
	require.Len(t, scenarios, 1)
	assert.Equal(t, "flat", scenarios[0].Name)
}

func TestCatalogMissingFileFails(t *testing.T) {
	_, err := NewCatalog(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())
	assert.Error(t, err)
}

func TestCatalogRejectsInvalidScenarios(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty catalog", `[]`},
		{"missing name", `[{"description": "x", "shocks": {"all": -0.1}}]`},
		{"duplicate names", `[{"name": "a", "shocks": {}}, {"name": "a", "shocks": {}}]`},
		{"shock beyond 100%", `[{"name": "a", "shocks": {"all": -1.5}}]`},
		{"negative duration", `[{"name": "a", "shocks": {}, "duration_periods": -1}]`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenarios.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := NewCatalog(path, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestCatalogReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.json")
	good := `[{"name": "flat", "shocks": {"all": 0}}]`
	require.NoError(t, os.WriteFile(path, []byte(good), 0o644))

	catalog, err := NewCatalog(path, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`broken`), 0o644))
	assert.Error(t, catalog.Reload())

	// The previous catalog must remain active.
	scenarios := catalog.Scenarios()
	require.Len(t, scenarios, 1)
	assert.Equal(t, "flat", scenarios[0].Name)
}

func TestCatalogScenariosReturnsCopy(t *testing.T) {
	catalog, err := NewCatalog("", zerolog.Nop())
	require.NoError(t, err)

	first := catalog.Scenarios()
	first[0].Name = "mutated"

	second := catalog.Scenarios()
	assert.NotEqual(t, "mutated", second[0].Name)
}
