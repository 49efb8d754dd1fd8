package portfolio

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/domain"
	apptesting "github.com/aristath/bastion/internal/testing"
)

func newTestProfileRepo(t *testing.T) (*ProfileRepository, func()) {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "config")
	return NewProfileRepository(db.Conn(), zerolog.Nop()), cleanup
}

func TestProfileUpsertAndGet(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	require.NoError(t, repo.Upsert(AssetProfile{
		Symbol:               "BTC",
		AssetClass:           domain.AssetClassCryptoMajor,
		LiquidityCoefficient: 0.9,
		CreditCoefficient:    0.1,
	}))

	p, err := repo.Get("BTC")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.AssetClassCryptoMajor, p.AssetClass)
	assert.Equal(t, 0.9, p.LiquidityCoefficient)
	assert.Equal(t, 0.1, p.CreditCoefficient)
	assert.NotEmpty(t, p.UpdatedAt)
}

func TestProfileGetMissing(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	p, err := repo.Get("MISSING")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfileUpsertReplaces(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	require.NoError(t, repo.Upsert(AssetProfile{Symbol: "DOGE", AssetClass: domain.AssetClassCryptoAlt, LiquidityCoefficient: 0.4}))
	require.NoError(t, repo.Upsert(AssetProfile{Symbol: "DOGE", AssetClass: domain.AssetClassCryptoAlt, LiquidityCoefficient: 0.6}))

	p, err := repo.Get("DOGE")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 0.6, p.LiquidityCoefficient)
}

func TestProfileUpsertDefaultsClass(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	require.NoError(t, repo.Upsert(AssetProfile{Symbol: "XYZ"}))

	p, err := repo.Get("XYZ")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.AssetClassUnknown, p.AssetClass)
}

func TestProfileUpsertRejectsEmptySymbol(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	assert.Error(t, repo.Upsert(AssetProfile{AssetClass: domain.AssetClassEquity}))
}

func TestProfileGetAllSorted(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	require.NoError(t, repo.Upsert(AssetProfile{Symbol: "ETH", AssetClass: domain.AssetClassCryptoMajor}))
	require.NoError(t, repo.Upsert(AssetProfile{Symbol: "BTC", AssetClass: domain.AssetClassCryptoMajor}))

	profiles, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "BTC", profiles[0].Symbol)
	assert.Equal(t, "ETH", profiles[1].Symbol)
}

func TestProfileGetBySymbols(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	require.NoError(t, repo.Upsert(AssetProfile{Symbol: "BTC", AssetClass: domain.AssetClassCryptoMajor}))

	profiles, err := repo.GetBySymbols([]string{"BTC", "MISSING"})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	_, ok := profiles["BTC"]
	assert.True(t, ok)
}

func TestProfileDelete(t *testing.T) {
	repo, cleanup := newTestProfileRepo(t)
	defer cleanup()

	require.NoError(t, repo.Upsert(AssetProfile{Symbol: "BTC", AssetClass: domain.AssetClassCryptoMajor}))
	require.NoError(t, repo.Delete("BTC"))

	p, err := repo.Get("BTC")
	require.NoError(t, err)
	assert.Nil(t, p)
}
