package postgres

import (
	"context"
	"fmt"

	"github.com/frahmantamala/redteam-collab/internal/finding"
	"github.com/jmoiron/sqlx"
)

// StatsRepository runs the dashboard aggregates as plain SQL.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) finding.StatsRepository {
	return &StatsRepository{db: db}
}

type bucket struct {
	Label string `db:"label"`
	Count int64  `db:"count"`
}

const (
	severityBuckets = `SELECT severity AS label, COUNT(*) AS count FROM findings GROUP BY severity`
	statusBuckets   = `SELECT status AS label, COUNT(*) AS count FROM findings GROUP BY status`
	countReports    = `SELECT COUNT(*) FROM reports`
	countUsers      = `SELECT COUNT(*) FROM users`
)

func (r *StatsRepository) Stats(ctx context.Context) (*finding.Stats, error) {
	st := &finding.Stats{
		BySeverity: make(map[string]int64, len(finding.Severities)),
		ByStatus:   make(map[string]int64, len(finding.Statuses)),
	}
	for _, s := range finding.Severities {
		st.BySeverity[s] = 0
	}
	for _, s := range finding.Statuses {
		st.ByStatus[s] = 0
	}

	var severities []bucket
	if err := r.db.SelectContext(ctx, &severities, severityBuckets); err != nil {
		return nil, fmt.Errorf("severity buckets: %w", err)
	}
	for _, b := range severities {
		st.BySeverity[b.Label] = b.Count
		st.TotalFindings += b.Count
	}

	var statuses []bucket
	if err := r.db.SelectContext(ctx, &statuses, statusBuckets); err != nil {
		return nil, fmt.Errorf("status buckets: %w", err)
	}
	for _, b := range statuses {
		st.ByStatus[b.Label] = b.Count
	}

	if err := r.db.GetContext(ctx, &st.TotalReports, countReports); err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	if err := r.db.GetContext(ctx, &st.TotalUsers, countUsers); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return st, nil
}
