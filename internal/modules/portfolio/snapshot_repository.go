package portfolio

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/domain"
)

// SnapshotRepository persists valued snapshots in history.db.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Save persists a snapshot. Positions are stored as a JSON blob since they
// are only ever read back whole.
func (r *SnapshotRepository) Save(snap *domain.PortfolioSnapshot) error {
	positionsJSON, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO portfolio_snapshots
		(portfolio_id, user_id, snapshot_at, total_value, currency, positions_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.PortfolioID, snap.UserID, snap.Timestamp.UTC().Format(time.RFC3339),
		snap.TotalValue, string(snap.Currency), string(positionsJSON),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	r.log.Debug().
		Str("portfolio_id", snap.PortfolioID).
		Float64("total_value", snap.TotalValue).
		Int("positions", len(snap.Positions)).
		Msg("Saved portfolio snapshot")
	return nil
}

// GetLatest returns the most recent snapshot for a portfolio, or nil when
// none has been stored yet.
func (r *SnapshotRepository) GetLatest(portfolioID string) (*domain.PortfolioSnapshot, error) {
	row := r.db.QueryRow(`
		SELECT portfolio_id, user_id, snapshot_at, total_value, currency, positions_json
		FROM portfolio_snapshots
		WHERE portfolio_id = ?
		ORDER BY snapshot_at DESC, id DESC
		LIMIT 1
	`, portfolioID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// ListRecent returns up to limit snapshots for a portfolio, newest first.
func (r *SnapshotRepository) ListRecent(portfolioID string, limit int) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT portfolio_id, user_id, snapshot_at, total_value, currency, positions_json
		FROM portfolio_snapshots
		WHERE portfolio_id = ?
		ORDER BY snapshot_at DESC, id DESC
		LIMIT ?
	`, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// ListPortfolioIDs returns every portfolio with at least one snapshot.
func (r *SnapshotRepository) ListPortfolioIDs() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT portfolio_id
		FROM portfolio_snapshots
		ORDER BY portfolio_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio ids: %w", err)
	}
	return ids, nil
}

// scanner abstracts sql.Row and sql.Rows for scanSnapshot
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	var snapshotAt, currency, positionsJSON string

	if err := row.Scan(&snap.PortfolioID, &snap.UserID, &snapshotAt, &snap.TotalValue, &currency, &positionsJSON); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339, snapshotAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot timestamp: %w", err)
	}
	snap.Timestamp = ts
	snap.Currency = domain.Currency(currency)

	if err := json.Unmarshal([]byte(positionsJSON), &snap.Positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	return &snap, nil
}
