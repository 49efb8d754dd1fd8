// Package portfolio builds and persists valued portfolio snapshots, the
// input every risk assessment starts from.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
)

// ProfileRepository handles asset profile database operations on config.db.
type ProfileRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProfileRepository creates a new asset profile repository.
func NewProfileRepository(db *sql.DB, log zerolog.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:  db,
		log: log.With().Str("repository", "asset_profiles").Logger(),
	}
}

// Get returns the profile for a symbol, or nil when none is stored.
func (r *ProfileRepository) Get(symbol string) (*AssetProfile, error) {
	var p AssetProfile
	var class string
	err := r.db.QueryRow(`
		SELECT symbol, asset_class, liquidity_coefficient, credit_coefficient, updated_at
		FROM asset_profiles
		WHERE symbol = ?
	`, symbol).Scan(&p.Symbol, &class, &p.LiquidityCoefficient, &p.CreditCoefficient, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset profile: %w", err)
	}
	p.AssetClass = domain.AssetClass(class)
	return &p, nil
}

// GetAll returns all stored profiles, sorted by symbol.
func (r *ProfileRepository) GetAll() ([]AssetProfile, error) {
	rows, err := r.db.Query(`
		SELECT symbol, asset_class, liquidity_coefficient, credit_coefficient, updated_at
		FROM asset_profiles
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset profiles: %w", err)
	}
	defer rows.Close()

	var profiles []AssetProfile
	for rows.Next() {
		var p AssetProfile
		var class string
		if err := rows.Scan(&p.Symbol, &class, &p.LiquidityCoefficient, &p.CreditCoefficient, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset profile: %w", err)
		}
		p.AssetClass = domain.AssetClass(class)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset profiles: %w", err)
	}
	return profiles, nil
}

// GetBySymbols returns profiles for the given symbols keyed by symbol.
// Symbols without a stored profile are simply absent from the map.
func (r *ProfileRepository) GetBySymbols(symbols []string) (map[string]AssetProfile, error) {
	profiles := make(map[string]AssetProfile, len(symbols))
	for _, symbol := range symbols {
		p, err := r.Get(symbol)
		if err != nil {
			return nil, err
		}
		if p != nil {
			profiles[symbol] = *p
		}
	}
	return profiles, nil
}

// Upsert stores or replaces a profile.
func (r *ProfileRepository) Upsert(p AssetProfile) error {
	if p.Symbol == "" {
		return fmt.Errorf("asset profile symbol is empty")
	}
	if p.AssetClass == "" {
		p.AssetClass = domain.AssetClassUnknown
	}

	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO asset_profiles
		(symbol, asset_class, liquidity_coefficient, credit_coefficient, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Symbol, string(p.AssetClass), p.LiquidityCoefficient, p.CreditCoefficient,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert asset profile: %w", err)
	}

	r.log.Debug().Str("symbol", p.Symbol).Str("class", string(p.AssetClass)).Msg("Upserted asset profile")
	return nil
}

// Delete removes a profile.
func (r *ProfileRepository) Delete(symbol string) error {
	_, err := r.db.Exec("DELETE FROM asset_profiles WHERE symbol = ?", symbol)
	if err != nil {
		return fmt.Errorf("failed to delete asset profile: %w", err)
	}
	return nil
}
