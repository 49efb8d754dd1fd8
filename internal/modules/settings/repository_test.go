package settings_test

import (
	"testing"

	"github.com/aristath/bastion/internal/modules/settings"
	apptesting "github.com/aristath/bastion/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *settings.Repository {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "config")
	t.Cleanup(cleanup)
	return settings.NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepositoryGetMissingKey(t *testing.T) {
	repo := newTestRepository(t)

	value, err := repo.Get("does_not_exist")
	require.NoError(t, err)
	assert.Nil(t, value, "missing key should return nil, not an error")
}

func TestRepositorySetAndGet(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Set("risk_confidence", "0.99", nil))

	value, err := repo.Get("risk_confidence")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "0.99", *value)

	// Upsert replaces the value
	require.NoError(t, repo.Set("risk_confidence", "0.90", nil))
	value, err = repo.Get("risk_confidence")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "0.90", *value)
}

func TestRepositoryTypedGetters(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SetFloat("alert_score_limit", 65.5))
	limit, err := repo.GetFloat("alert_score_limit", 70.0)
	require.NoError(t, err)
	assert.InDelta(t, 65.5, limit, 1e-9)

	// Missing key falls back to the default
	missing, err := repo.GetFloat("never_set", 12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, missing)

	// Ints stored as "12.0" parse via float
	require.NoError(t, repo.Set("mc_simulations", "5000.0", nil))
	sims, err := repo.GetInt("mc_simulations", 10000)
	require.NoError(t, err)
	assert.Equal(t, 5000, sims)

	require.NoError(t, repo.SetBool("r2_backup_enabled", true))
	enabled, err := repo.GetBool("r2_backup_enabled", false)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestRepositoryDelete(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Set("temp_key", "x", nil))
	require.NoError(t, repo.Delete("temp_key"))

	value, err := repo.Get("temp_key")
	require.NoError(t, err)
	assert.Nil(t, value)

	// Deleting a missing key is not an error
	require.NoError(t, repo.Delete("temp_key"))
}

func TestRepositoryGetAll(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Set("a", "1", nil))
	require.NoError(t, repo.Set("b", "2", nil))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}
