// Package assessment orchestrates full risk assessments and keeps their
// append-only ledger.
package assessment

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/database"
	"github.com/aristath/bastion/internal/domain"
)

// Repository persists assessments in assessments.db. The ledger is
// append-only: rows are inserted once and never updated, later assessments
// supersede earlier ones by timestamp.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new assessment repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "assessments").Logger(),
	}
}

// Save inserts the assessment and the alerts it raised in one transaction.
func (r *Repository) Save(a *domain.RiskAssessment, alerts []domain.Alert) error {
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	stressJSON, err := json.Marshal(a.StressResults)
	if err != nil {
		return fmt.Errorf("failed to marshal stress results: %w", err)
	}
	recommendationsJSON, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}
	reasonsJSON, err := json.Marshal(a.DegradedReasons)
	if err != nil {
		return fmt.Errorf("failed to marshal degraded reasons: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO assessments
			(id, portfolio_id, user_id, assessed_at, risk_grade, overall_score,
			 degraded, degraded_reasons_json, metrics_json, stress_json,
			 recommendations_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.PortfolioID, a.UserID, a.AssessedAt.UTC().Format(time.RFC3339Nano),
			a.Metrics.RiskGrade, a.Metrics.OverallRiskScore, boolToInt(a.Degraded),
			string(reasonsJSON), string(metricsJSON), string(stressJSON),
			string(recommendationsJSON), now)
		if err != nil {
			return fmt.Errorf("failed to insert assessment: %w", err)
		}

		for _, alert := range alerts {
			_, err := tx.Exec(`
				INSERT INTO alerts
				(assessment_id, type, severity, message, symbol, current_value, threshold, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, a.ID, string(alert.Type), string(alert.Severity), alert.Message,
				alert.Symbol, alert.CurrentValue, alert.Threshold, now)
			if err != nil {
				return fmt.Errorf("failed to insert alert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("assessment_id", a.ID).
		Str("portfolio_id", a.PortfolioID).
		Str("grade", a.Metrics.RiskGrade).
		Int("alerts", len(alerts)).
		Msg("Saved assessment")
	return nil
}

// GetLatest returns the most recent assessment for a portfolio, or nil when
// none has been stored yet.
func (r *Repository) GetLatest(portfolioID string) (*domain.RiskAssessment, error) {
	row := r.db.QueryRow(selectColumns+`
		FROM assessments
		WHERE portfolio_id = ?
		ORDER BY assessed_at DESC
		LIMIT 1
	`, portfolioID)

	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest assessment: %w", err)
	}
	return a, nil
}

// GetByID returns one assessment, or nil when the id is unknown.
func (r *Repository) GetByID(id string) (*domain.RiskAssessment, error) {
	row := r.db.QueryRow(selectColumns+`
		FROM assessments
		WHERE id = ?
	`, id)

	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

// ListByPortfolio returns up to limit assessments, newest first.
func (r *Repository) ListByPortfolio(portfolioID string, limit int) ([]domain.RiskAssessment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(selectColumns+`
		FROM assessments
		WHERE portfolio_id = ?
		ORDER BY assessed_at DESC
		LIMIT ?
	`, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var assessments []domain.RiskAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		assessments = append(assessments, *a)
	}
	return assessments, rows.Err()
}

// AlertsForAssessment returns the alerts one assessment raised, in insert
// order.
func (r *Repository) AlertsForAssessment(assessmentID string) ([]domain.Alert, error) {
	rows, err := r.db.Query(`
		SELECT type, severity, message, symbol, current_value, threshold
		FROM alerts
		WHERE assessment_id = ?
		ORDER BY id
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []domain.Alert{}
	for rows.Next() {
		var alert domain.Alert
		var alertType, severity string
		var symbol sql.NullString
		if err := rows.Scan(&alertType, &severity, &alert.Message, &symbol,
			&alert.CurrentValue, &alert.Threshold); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.Type = domain.AlertType(alertType)
		alert.Severity = domain.Severity(severity)
		alert.Symbol = symbol.String
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// Count returns the total number of stored assessments.
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM assessments`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assessments: %w", err)
	}
	return count, nil
}

const selectColumns = `
	SELECT id, portfolio_id, user_id, assessed_at, degraded,
	       degraded_reasons_json, metrics_json, stress_json, recommendations_json
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row rowScanner) (*domain.RiskAssessment, error) {
	var a domain.RiskAssessment
	var userID sql.NullString
	var assessedAt string
	var degraded int
	var reasonsJSON, metricsJSON, stressJSON, recommendationsJSON string

	err := row.Scan(&a.ID, &a.PortfolioID, &userID, &assessedAt, &degraded,
		&reasonsJSON, &metricsJSON, &stressJSON, &recommendationsJSON)
	if err != nil {
		return nil, err
	}

	a.UserID = userID.String
	a.Degraded = degraded != 0
	if a.AssessedAt, err = time.Parse(time.RFC3339Nano, assessedAt); err != nil {
		return nil, fmt.Errorf("failed to parse assessed_at: %w", err)
	}
	if err := json.Unmarshal([]byte(reasonsJSON), &a.DegradedReasons); err != nil {
		return nil, fmt.Errorf("failed to unmarshal degraded reasons: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &a.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(stressJSON), &a.StressResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stress results: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendationsJSON), &a.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
	}
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
