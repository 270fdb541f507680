package policy

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists policy versions in PostgreSQL. The row with the
// highest version is the active policy.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed policy store. If the
// table is empty it seeds the default policy as version 1.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policy_versions`).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to check policy table: %w", err)
	}
	if count == 0 {
		if err := s.Install(ctx, Default()); err != nil {
			return nil, fmt.Errorf("failed to seed default policy: %w", err)
		}
	}
	return s, nil
}

func (s *PostgresStore) Active(ctx context.Context) (*Policy, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectPolicy+` ORDER BY version DESC LIMIT 1`))
}

func (s *PostgresStore) Install(ctx context.Context, p *Policy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_versions (version, auto_approve_below, review_queue_threshold,
			high_risk_threshold, auto_block_threshold, max_returns_per_month, blacklist_days,
			enable_ml_scoring, enable_image_analysis, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.Version, p.AutoApproveBelow, p.ReviewQueueThreshold, p.HighRiskThreshold,
		p.AutoBlockThreshold, p.MaxReturnsPerMonth, p.BlacklistDays,
		p.EnableMLScoring, p.EnableImageAnalysis, p.UpdatedBy, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to install policy version %d: %w", p.Version, err)
	}
	return nil
}

func (s *PostgresStore) Version(ctx context.Context, version int) (*Policy, error) {
	p, err := s.scanOne(s.db.QueryRowContext(ctx, selectPolicy+` WHERE version = $1`, version))
	if err == sql.ErrNoRows {
		return nil, ErrVersionNotFound
	}
	return p, err
}

const selectPolicy = `
	SELECT version, auto_approve_below, review_queue_threshold, high_risk_threshold,
		auto_block_threshold, max_returns_per_month, blacklist_days,
		enable_ml_scoring, enable_image_analysis, COALESCE(updated_by, ''), updated_at
	FROM policy_versions`

func (s *PostgresStore) scanOne(row *sql.Row) (*Policy, error) {
	p := &Policy{}
	err := row.Scan(&p.Version, &p.AutoApproveBelow, &p.ReviewQueueThreshold,
		&p.HighRiskThreshold, &p.AutoBlockThreshold, &p.MaxReturnsPerMonth,
		&p.BlacklistDays, &p.EnableMLScoring, &p.EnableImageAnalysis,
		&p.UpdatedBy, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

var _ Store = (*PostgresStore)(nil)
