// Package calculations provides a persistent cache for expensive risk
// computations. Results are msgpack-encoded and stored in cache.db with
// per-category TTLs. Every entry can be recomputed from price history,
// so the cache is safe to wipe at any time.
package calculations

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// TTLs per cache category. Correlation and covariance matrices change slowly
// compared to what they cost to compute; returns series are cheap but read often.
const (
	TTLCorrelation = 6 * time.Hour
	TTLCovariance  = 24 * time.Hour
	TTLReturns     = 1 * time.Hour
)

// HashSymbols creates a deterministic hash from a list of symbols for cache keys.
// Symbols are sorted to ensure consistent hashing regardless of input order.
func HashSymbols(symbols []string) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	combined := strings.Join(sorted, ",")
	h := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(h[:16]) // First 16 bytes (32 hex chars) for efficiency
}

// HashKey creates a deterministic hash from an arbitrary key string.
// Use this when the cache key carries more than a symbol set, e.g. a
// symbol hash plus a lookback window.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:16])
}

// Cache stores msgpack-encoded calculation results in cache.db.
type Cache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCache creates a calculation cache backed by the given database.
func NewCache(db *sql.DB, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		log: log.With().Str("component", "calculation_cache").Logger(),
	}
}

// Get loads a cached value into dest if a fresh entry exists.
// Returns false on miss or expiry. Decode failures are logged and treated
// as misses so callers fall through to recomputation.
func (c *Cache) Get(category, hash string, dest interface{}) bool {
	var payload []byte
	err := c.db.QueryRow(
		"SELECT payload FROM calculation_cache WHERE cache_key = ? AND expires_at > ?",
		cacheKey(category, hash), time.Now().Unix(),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("category", category).Msg("Cache read failed")
		return false
	}

	if err := msgpack.Unmarshal(payload, dest); err != nil {
		c.log.Warn().Err(err).Str("category", category).Msg("Failed to decode cached payload, treating as miss")
		return false
	}
	return true
}

// Set stores a value under category+hash with the given TTL.
// Uses INSERT OR REPLACE so repeated writes to the same key upsert.
func (c *Cache) Set(category, hash string, value interface{}, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	now := time.Now().Unix()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO calculation_cache (cache_key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)",
		cacheKey(category, hash), payload, now, now+int64(ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a single cache entry.
func (c *Cache) Delete(category, hash string) error {
	_, err := c.db.Exec("DELETE FROM calculation_cache WHERE cache_key = ?", cacheKey(category, hash))
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes all entries past their expiry.
// Returns the number of rows deleted.
func (c *Cache) DeleteExpired() (int64, error) {
	result, err := c.db.Exec("DELETE FROM calculation_cache WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted > 0 {
		c.log.Debug().Int64("deleted", deleted).Msg("Removed expired cache entries")
	}
	return deleted, nil
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM calculation_cache")
	if err != nil {
		return fmt.Errorf("failed to clear calculation cache: %w", err)
	}
	c.log.Info().Msg("Calculation cache cleared")
	return nil
}

// Stats returns the total and expired entry counts.
func (c *Cache) Stats() (entries int, expired int, err error) {
	err = c.db.QueryRow("SELECT COUNT(*) FROM calculation_cache").Scan(&entries)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count cache entries: %w", err)
	}

	err = c.db.QueryRow(
		"SELECT COUNT(*) FROM calculation_cache WHERE expires_at < ?", time.Now().Unix(),
	).Scan(&expired)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count expired cache entries: %w", err)
	}
	return entries, expired, nil
}

func cacheKey(category, hash string) string {
	return category + ":" + hash
}
