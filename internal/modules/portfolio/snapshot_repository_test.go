package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/domain"
	apptesting "github.com/aristath/bastion/internal/testing"
)

func newTestSnapshotRepo(t *testing.T) (*SnapshotRepository, func()) {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "history")
	return NewSnapshotRepository(db.Conn(), zerolog.Nop()), cleanup
}

func sampleSnapshot(portfolioID string, at time.Time, totalValue float64) *domain.PortfolioSnapshot {
	return &domain.PortfolioSnapshot{
		Timestamp:   at,
		PortfolioID: portfolioID,
		UserID:      "user-1",
		Currency:    domain.CurrencyUSD,
		TotalValue:  totalValue,
		Positions: []domain.AssetPosition{
			{Symbol: "BTC", AssetClass: domain.AssetClassCryptoMajor, Quantity: 1, UnitPrice: totalValue, Value: totalValue, Weight: 1},
		},
	}
}

func TestSnapshotSaveAndGetLatest(t *testing.T) {
	repo, cleanup := newTestSnapshotRepo(t)
	defer cleanup()

	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleSnapshot("main", at, 50000)))

	loaded, err := repo.GetLatest("main")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "main", loaded.PortfolioID)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.Equal(t, domain.CurrencyUSD, loaded.Currency)
	assert.Equal(t, 50000.0, loaded.TotalValue)
	assert.True(t, loaded.Timestamp.Equal(at))
	require.Len(t, loaded.Positions, 1)
	assert.Equal(t, domain.AssetClassCryptoMajor, loaded.Positions[0].AssetClass)
	assert.Equal(t, 1.0, loaded.Positions[0].Weight)
}

func TestSnapshotGetLatestPicksNewest(t *testing.T) {
	repo, cleanup := newTestSnapshotRepo(t)
	defer cleanup()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleSnapshot("main", base, 100)))
	require.NoError(t, repo.Save(sampleSnapshot("main", base.Add(24*time.Hour), 200)))
	require.NoError(t, repo.Save(sampleSnapshot("main", base.Add(12*time.Hour), 150)))

	loaded, err := repo.GetLatest("main")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 200.0, loaded.TotalValue)
}

func TestSnapshotGetLatestMissing(t *testing.T) {
	repo, cleanup := newTestSnapshotRepo(t)
	defer cleanup()

	loaded, err := repo.GetLatest("nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotIsolatesPortfolios(t *testing.T) {
	repo, cleanup := newTestSnapshotRepo(t)
	defer cleanup()

	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(sampleSnapshot("alpha", at, 100)))
	require.NoError(t, repo.Save(sampleSnapshot("beta", at.Add(time.Hour), 200)))

	loaded, err := repo.GetLatest("alpha")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 100.0, loaded.TotalValue)
}

func TestSnapshotListRecent(t *testing.T) {
	repo, cleanup := newTestSnapshotRepo(t)
	defer cleanup()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(sampleSnapshot("main", base.Add(time.Duration(i)*time.Hour), float64(i))))
	}

	snapshots, err := repo.ListRecent("main", 3)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	// Newest first
	assert.Equal(t, 4.0, snapshots[0].TotalValue)
	assert.Equal(t, 3.0, snapshots[1].TotalValue)
	assert.Equal(t, 2.0, snapshots[2].TotalValue)
}
