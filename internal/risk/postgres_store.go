package risk

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists customers in PostgreSQL. Return history lives
// in its own table and is loaded with the customer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed customer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, risk_score, status, flags, ml_confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, c.ID, c.Name, c.Email, c.RiskScore, c.Status, pq.Array(c.Flags), c.MLConfidence)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Customer, error) {
	c := &Customer{}
	var flags pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, risk_score, status, flags, ml_confidence, created_at, updated_at
		FROM customers WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.RiskScore, &c.Status, &flags, &c.MLConfidence, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	c.Flags = flags

	rows, err := s.db.QueryContext(ctx, `
		SELECT return_id, amount, filed_at
		FROM customer_return_history
		WHERE customer_id = $1
		ORDER BY filed_at ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load return history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r ReturnRecord
		if err := rows.Scan(&r.ReturnID, &r.Amount, &r.FiledAt); err != nil {
			return nil, err
		}
		c.Returns = append(c.Returns, r)
	}
	return c, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, c *Customer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, risk_score = $4, status = $5, flags = $6,
			ml_confidence = $7, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.Name, c.Email, c.RiskScore, c.Status, pq.Array(c.Flags), c.MLConfidence)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCustomerNotFound
	}

	// Return history rows are append-only; insert any not yet stored.
	for _, r := range c.Returns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customer_return_history (customer_id, return_id, amount, filed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (return_id) DO NOTHING
		`, c.ID, r.ReturnID, r.Amount, r.FiledAt)
		if err != nil {
			return fmt.Errorf("failed to record return history: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, risk_score, status, flags, ml_confidence, created_at, updated_at
		FROM customers ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Customer
	for rows.Next() {
		c := &Customer{}
		var flags pq.StringArray
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.RiskScore, &c.Status, &flags,
			&c.MLConfidence, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Flags = flags
		result = append(result, c)
	}
	return result, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
