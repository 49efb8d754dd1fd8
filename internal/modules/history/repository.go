// Package history provides storage and retrieval of daily price history.
// Prices feed the returns derivation for every risk metric, so reads are
// shaped for that path: closes come back oldest-first, ready to diff.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// Repository provides access to daily price data in history.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "history").Logger(),
	}
}

// UpsertDailyPrices writes a batch of daily bars for a symbol in a single
// transaction. Existing bars for the same (symbol, date) are replaced, so
// re-syncing an overlapping range is safe.
func (r *Repository) UpsertDailyPrices(symbol string, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
		(symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, price := range prices {
		volume := sql.NullFloat64{}
		if price.Volume != nil {
			volume.Float64 = *price.Volume
			volume.Valid = true
		}

		_, err = stmt.Exec(symbol, price.Date, price.Open, price.High, price.Low, price.Close, volume)
		if err != nil {
			return fmt.Errorf("failed to insert daily price for %s: %w", price.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily prices: %w", err)
	}

	r.log.Debug().Str("symbol", symbol).Int("bars", len(prices)).Msg("Upserted daily prices")
	return nil
}

// GetDailyPrices fetches up to limit daily bars for a symbol, newest first.
func (r *Repository) GetDailyPrices(symbol string, limit int) ([]DailyPrice, error) {
	rows, err := r.db.Query(`
		SELECT date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var volume sql.NullFloat64

		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if volume.Valid {
			p.Volume = &volume.Float64
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// GetCloses fetches up to limit closing prices for a symbol in chronological
// order (oldest first), the orientation the returns derivation expects.
// Returns an empty slice when the symbol has no stored history.
func (r *Repository) GetCloses(symbol string, limit int) ([]float64, error) {
	rows, err := r.db.Query(`
		SELECT close
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}

	// Reverse from newest-first to oldest-first
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

// LatestDate returns the most recent bar date stored for a symbol,
// or "" when the symbol has no history.
func (r *Repository) LatestDate(symbol string) (string, error) {
	var date sql.NullString
	err := r.db.QueryRow("SELECT MAX(date) FROM daily_prices WHERE symbol = ?", symbol).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to query latest date: %w", err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

// Symbols returns all symbols with stored history, sorted.
func (r *Repository) Symbols() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}

// Coverage reports bar counts and date ranges per symbol.
func (r *Repository) Coverage() ([]SymbolCoverage, error) {
	rows, err := r.db.Query(`
		SELECT symbol, COUNT(*), MIN(date), MAX(date)
		FROM daily_prices
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	defer rows.Close()

	var coverage []SymbolCoverage
	for rows.Next() {
		var c SymbolCoverage
		if err := rows.Scan(&c.Symbol, &c.Bars, &c.FirstDate, &c.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan coverage: %w", err)
		}
		coverage = append(coverage, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coverage: %w", err)
	}
	return coverage, nil
}

// PruneBefore deletes all bars older than the given date (exclusive).
// Returns the number of rows deleted.
func (r *Repository) PruneBefore(date string) (int64, error) {
	result, err := r.db.Exec("DELETE FROM daily_prices WHERE date < ?", date)
	if err != nil {
		return 0, fmt.Errorf("failed to prune old prices: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Str("before", date).Msg("Pruned old price bars")
	}
	return deleted, nil
}
