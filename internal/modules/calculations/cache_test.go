package calculations

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	apptesting "github.com/aristath/bastion/internal/testing"
)

func newTestCache(t *testing.T) (*Cache, func()) {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "cache")
	return NewCache(db.Conn(), zerolog.Nop()), cleanup
}

type cachedMatrix struct {
	Symbols []string    `msgpack:"symbols"`
	Matrix  [][]float64 `msgpack:"matrix"`
}

func TestCacheRoundTrip(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	stored := cachedMatrix{
		Symbols: []string{"BTC", "ETH"},
		Matrix:  [][]float64{{1.0, 0.8}, {0.8, 1.0}},
	}
	hash := HashSymbols(stored.Symbols)

	if err := cache.Set("correlation", hash, stored, TTLCorrelation); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var loaded cachedMatrix
	if !cache.Get("correlation", hash, &loaded) {
		t.Fatal("expected cache hit after Set")
	}
	if len(loaded.Symbols) != 2 || loaded.Symbols[0] != "BTC" || loaded.Symbols[1] != "ETH" {
		t.Errorf("symbols corrupted in round trip: %v", loaded.Symbols)
	}
	if len(loaded.Matrix) != 2 || loaded.Matrix[0][1] != 0.8 || loaded.Matrix[1][1] != 1.0 {
		t.Errorf("matrix corrupted in round trip: %v", loaded.Matrix)
	}
}

func TestCacheMiss(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	var dest cachedMatrix
	if cache.Get("correlation", HashSymbols([]string{"BTC"}), &dest) {
		t.Error("expected miss on empty cache")
	}
}

func TestCacheCategoriesAreIsolated(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	hash := HashSymbols([]string{"BTC", "ETH"})
	if err := cache.Set("correlation", hash, []float64{0.5}, TTLCorrelation); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var dest []float64
	if cache.Get("covariance", hash, &dest) {
		t.Error("same hash under a different category must not hit")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	hash := HashSymbols([]string{"BTC"})
	// Negative TTL writes an already-expired entry.
	if err := cache.Set("returns", hash, []float64{0.01, -0.02}, -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var dest []float64
	if cache.Get("returns", hash, &dest) {
		t.Error("expected miss on expired entry")
	}

	entries, expired, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if entries != 1 || expired != 1 {
		t.Errorf("Stats = (%d, %d), want (1, 1)", entries, expired)
	}

	deleted, err := cache.DeleteExpired()
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteExpired removed %d rows, want 1", deleted)
	}

	entries, expired, err = cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if entries != 0 || expired != 0 {
		t.Errorf("Stats after cleanup = (%d, %d), want (0, 0)", entries, expired)
	}
}

func TestCacheOverwrite(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	hash := HashSymbols([]string{"BTC"})
	if err := cache.Set("returns", hash, []float64{0.01}, TTLReturns); err != nil {
		t.Fatalf("first Set failed: %v", err)
	}
	if err := cache.Set("returns", hash, []float64{0.02, 0.03}, TTLReturns); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	var dest []float64
	if !cache.Get("returns", hash, &dest) {
		t.Fatal("expected hit after overwrite")
	}
	if len(dest) != 2 || dest[0] != 0.02 {
		t.Errorf("overwrite did not replace payload: %v", dest)
	}

	entries, _, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if entries != 1 {
		t.Errorf("overwrite created %d entries, want 1", entries)
	}
}

func TestCacheClear(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	for _, sym := range []string{"BTC", "ETH", "SOL"} {
		if err := cache.Set("returns", HashSymbols([]string{sym}), []float64{0.01}, TTLReturns); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	entries, _, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if entries != 0 {
		t.Errorf("Clear left %d entries", entries)
	}
}

func TestCacheDelete(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	hash := HashSymbols([]string{"BTC"})
	if err := cache.Set("returns", hash, []float64{0.01}, TTLReturns); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cache.Delete("returns", hash); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var dest []float64
	if cache.Get("returns", hash, &dest) {
		t.Error("expected miss after Delete")
	}
}

func TestHashSymbols(t *testing.T) {
	a := HashSymbols([]string{"BTC", "ETH", "SOL"})
	b := HashSymbols([]string{"SOL", "BTC", "ETH"})
	if a != b {
		t.Errorf("hash must be order independent: %s != %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(a))
	}

	c := HashSymbols([]string{"BTC", "ETH"})
	if a == c {
		t.Error("different symbol sets must hash differently")
	}
}

func TestHashKey(t *testing.T) {
	a := HashKey("abc123|252")
	b := HashKey("abc123|252")
	c := HashKey("abc123|90")
	if a != b {
		t.Error("HashKey must be deterministic")
	}
	if a == c {
		t.Error("different keys must hash differently")
	}
	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(a))
	}
}
