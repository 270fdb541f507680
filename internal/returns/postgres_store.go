package returns

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/mbd888/fraudguard/internal/imaging"
)

// PostgresStore persists return requests in PostgreSQL. The fused image
// verdict is stored as JSONB since it is read and written whole.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed return store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *ReturnRequest) error {
	verdict, err := marshalVerdict(r.Verdict)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO return_requests (id, customer_id, reason, amount, images, state,
			verdict, risk_score, policy_version, degraded, decision_reason, decided_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, r.ID, r.CustomerID, r.Reason, r.Amount, pq.Array(r.Images), r.State,
		verdict, r.RiskScore, r.PolicyVersion, r.Degraded, r.DecisionReason, r.DecidedBy)
	if err != nil {
		return fmt.Errorf("failed to create return: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*ReturnRequest, error) {
	r, err := scanReturn(s.db.QueryRowContext(ctx, selectReturn+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrReturnNotFound
	}
	return r, err
}

func (s *PostgresStore) Update(ctx context.Context, r *ReturnRequest) error {
	verdict, err := marshalVerdict(r.Verdict)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE return_requests
		SET state = $2, verdict = $3, risk_score = $4, policy_version = $5,
			degraded = $6, decision_reason = $7, decided_by = $8, updated_at = NOW()
		WHERE id = $1
	`, r.ID, r.State, verdict, r.RiskScore, r.PolicyVersion, r.Degraded,
		r.DecisionReason, r.DecidedBy)
	if err != nil {
		return fmt.Errorf("failed to update return: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReturnNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*ReturnRequest, error) {
	return s.list(ctx, `WHERE customer_id = $1`, customerID, limit)
}

func (s *PostgresStore) ListByState(ctx context.Context, state State, limit int) ([]*ReturnRequest, error) {
	return s.list(ctx, `WHERE state = $1`, string(state), limit)
}

const selectReturn = `
	SELECT id, customer_id, reason, amount, images, state, verdict, risk_score,
		policy_version, degraded, COALESCE(decision_reason, ''), COALESCE(decided_by, ''),
		created_at, updated_at
	FROM return_requests`

func (s *PostgresStore) list(ctx context.Context, where string, arg any, limit int) ([]*ReturnRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectReturn+` `+where+` ORDER BY created_at ASC LIMIT $2`, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*ReturnRequest
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReturn(row rowScanner) (*ReturnRequest, error) {
	r := &ReturnRequest{}
	var images pq.StringArray
	var verdict []byte
	err := row.Scan(&r.ID, &r.CustomerID, &r.Reason, &r.Amount, &images, &r.State,
		&verdict, &r.RiskScore, &r.PolicyVersion, &r.Degraded, &r.DecisionReason,
		&r.DecidedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Images = images
	if len(verdict) > 0 {
		v := &imaging.Verdict{}
		if err := json.Unmarshal(verdict, v); err != nil {
			return nil, fmt.Errorf("failed to decode verdict: %w", err)
		}
		r.Verdict = v
	}
	return r, nil
}

func marshalVerdict(v *imaging.Verdict) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verdict: %w", err)
	}
	return data, nil
}

var _ Store = (*PostgresStore)(nil)
