package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists chat sessions in PostgreSQL. The message
// transcript is stored as JSONB: it is always read and written whole,
// and sessions are short-lived.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	messages, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, customer_id, status, risk_score, flagged_count, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, sess.ID, sess.CustomerID, sess.Status, sess.RiskScore, sess.FlaggedCount, messages)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	var messages []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, risk_score, flagged_count, messages, created_at, updated_at
		FROM chat_sessions WHERE id = $1
	`, id).Scan(&sess.ID, &sess.CustomerID, &sess.Status, &sess.RiskScore,
		&sess.FlaggedCount, &messages, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &sess.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages: %w", err)
		}
	}
	return sess, nil
}

func (s *PostgresStore) Update(ctx context.Context, sess *Session) error {
	messages, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET status = $2, risk_score = $3, flagged_count = $4, messages = $5, updated_at = NOW()
		WHERE id = $1
	`, sess.ID, sess.Status, sess.RiskScore, sess.FlaggedCount, messages)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, status, risk_score, flagged_count, messages, created_at, updated_at
		FROM chat_sessions WHERE customer_id = $1
		ORDER BY created_at ASC LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Session
	for rows.Next() {
		sess := &Session{}
		var messages []byte
		if err := rows.Scan(&sess.ID, &sess.CustomerID, &sess.Status, &sess.RiskScore,
			&sess.FlaggedCount, &messages, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			if err := json.Unmarshal(messages, &sess.Messages); err != nil {
				return nil, fmt.Errorf("failed to decode messages: %w", err)
			}
		}
		result = append(result, sess)
	}
	return result, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
