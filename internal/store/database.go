package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tcm-wellness-backend/internal/db"
)

// Report is an archived first analysis.
type Report struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Summary   string    `json:"summary"`
	Analysis  string    `json:"analysis"`
	RedFlags  []string  `json:"redFlags"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

// DatabaseStore archives generated reports in PostgreSQL
type DatabaseStore struct {
	db *db.DB
}

func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// SaveReport inserts a report, assigning ID and CreatedAt when empty.
func (ds *DatabaseStore) SaveReport(ctx context.Context, r *Report) error {
	if r.SessionID == "" || r.Analysis == "" {
		return fmt.Errorf("session_id and analysis are required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.RedFlags == nil {
		r.RedFlags = []string{}
	}

	query := `
		INSERT INTO consultation_reports (id, session_id, summary, analysis, red_flags, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := ds.db.ExecContext(ctx, query,
		r.ID, r.SessionID, r.Summary, r.Analysis, pq.Array(r.RedFlags), r.Model, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// ListReports returns the session's reports, newest first.
func (ds *DatabaseStore) ListReports(ctx context.Context, sessionID string) ([]Report, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	query := `
		SELECT id, session_id, summary, analysis, red_flags, model, created_at
		FROM consultation_reports
		WHERE session_id = $1
		ORDER BY created_at DESC
	`
	rows, err := ds.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Summary, &r.Analysis, pq.Array(&r.RedFlags), &r.Model, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// DeleteReports removes all reports of a session.
func (ds *DatabaseStore) DeleteReports(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM consultation_reports WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete reports: %w", err)
	}
	return nil
}
