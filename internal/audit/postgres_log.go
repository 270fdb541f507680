package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLog writes audit entries to PostgreSQL.
type PostgresLog struct {
	db *sql.DB
}

// NewPostgresLog creates an audit log backed by PostgreSQL.
func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

func (l *PostgresLog) Append(ctx context.Context, entry *Entry) error {
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO audit_log (actor_type, actor_id, action, target_ref, reason, policy_version, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`, entry.ActorType, entry.ActorID, entry.Action, entry.TargetRef,
		entry.Reason, entry.PolicyVersion, entry.RequestID).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (l *PostgresLog) ByTarget(ctx context.Context, targetRef string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, actor_type, COALESCE(actor_id, ''), action, target_ref,
			COALESCE(reason, ''), COALESCE(policy_version, 0), COALESCE(request_id, ''), created_at
		FROM audit_log
		WHERE target_ref = $1
		ORDER BY id ASC
		LIMIT $2
	`, targetRef, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.ActorType, &e.ActorID, &e.Action, &e.TargetRef,
			&e.Reason, &e.PolicyVersion, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ Log = (*PostgresLog)(nil)
