package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBarSource returns canned bars per symbol and records calls
type fakeBarSource struct {
	bars  map[string][]DailyPrice
	err   error
	calls []string
}

func (f *fakeBarSource) GetDailyBars(_ context.Context, symbol string, _ int) ([]DailyPrice, error) {
	f.calls = append(f.calls, symbol)
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[symbol], nil
}

func recentBar(daysAgo int) DailyPrice {
	date := time.Now().UTC().AddDate(0, 0, -daysAgo).Format("2006-01-02")
	return DailyPrice{Date: date, Open: 100, High: 101, Low: 99, Close: 100.5}
}

func TestNeedsSync(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, zerolog.Nop())
	svc := NewSyncService(repo, &fakeBarSource{}, zerolog.Nop())

	// Never synced
	assert.True(t, svc.NeedsSync("BTC"))

	// Fresh bar from today
	seedBars(t, repo, "BTC", []DailyPrice{recentBar(0)})
	assert.False(t, svc.NeedsSync("BTC"))

	// Stale bar from last week
	seedBars(t, repo, "ETH", []DailyPrice{recentBar(7)})
	assert.True(t, svc.NeedsSync("ETH"))
}

func TestSyncSymbol(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, zerolog.Nop())

	source := &fakeBarSource{bars: map[string][]DailyPrice{
		"BTC": {recentBar(2), recentBar(1), recentBar(0)},
	}}
	svc := NewSyncService(repo, source, zerolog.Nop())

	require.NoError(t, svc.SyncSymbol(context.Background(), "BTC"))

	closes, err := repo.GetCloses("BTC", 10)
	require.NoError(t, err)
	assert.Len(t, closes, 3)
}

func TestSyncSymbolEmptyResponse(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, zerolog.Nop())
	svc := NewSyncService(repo, &fakeBarSource{}, zerolog.Nop())

	err := svc.SyncSymbol(context.Background(), "BTC")
	assert.Error(t, err)
}

func TestSyncStaleSkipsFresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, zerolog.Nop())

	// BTC is fresh, ETH has never been synced
	seedBars(t, repo, "BTC", []DailyPrice{recentBar(0)})

	source := &fakeBarSource{bars: map[string][]DailyPrice{
		"ETH": {recentBar(0)},
	}}
	svc := NewSyncService(repo, source, zerolog.Nop())

	synced, failed := svc.SyncStale(context.Background(), []string{"BTC", "ETH"})
	assert.Equal(t, 1, synced)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"ETH"}, source.calls)
}

func TestSyncStaleCountsFailures(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, zerolog.Nop())

	source := &fakeBarSource{err: errors.New("feed down")}
	svc := NewSyncService(repo, source, zerolog.Nop())

	synced, failed := svc.SyncStale(context.Background(), []string{"BTC", "ETH"})
	assert.Equal(t, 0, synced)
	assert.Equal(t, 2, failed)
}

func TestSyncStaleStopsOnCancelledContext(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, zerolog.Nop())

	source := &fakeBarSource{bars: map[string][]DailyPrice{}}
	svc := NewSyncService(repo, source, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	synced, failed := svc.SyncStale(ctx, []string{"BTC", "ETH"})
	assert.Equal(t, 0, synced)
	assert.Equal(t, 0, failed)
	assert.Empty(t, source.calls)
}

func TestRecordBar(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, zerolog.Nop())
	svc := NewSyncService(repo, &fakeBarSource{}, zerolog.Nop())

	require.NoError(t, svc.RecordBar("BTC", recentBar(0)))

	closes, err := repo.GetCloses("BTC", 10)
	require.NoError(t, err)
	assert.Len(t, closes, 1)
}
