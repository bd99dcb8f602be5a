package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RefundMetadata is persisted into the payment's metadata blob when a
// refund is applied
type RefundMetadata struct {
	Amount      int64  `json:"refund_amount"`
	Reason      string `json:"refund_reason,omitempty"`
	ReversalRef string `json:"reversal_ref"`
}

// Repository defines payment record data access
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByExternalRef(ctx context.Context, channel Channel, externalRef string) (*Payment, error)
	AttachExternalRef(ctx context.Context, id uuid.UUID, externalRef string, next Status) error
	Transition(ctx context.Context, id uuid.UUID, from, to Status, settlementID string) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, meta RefundMetadata) (bool, error)
	ListByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]*Payment, error)
	SumCompletedByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates payment repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, payer_id, payee_id, project_id, amount, currency, channel, status, description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.PayerID,
		p.PayeeID,
		p.ProjectID,
		p.Amount,
		p.Currency,
		p.Channel,
		p.Status,
		p.Description,
		p.Metadata,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetByExternalRef(ctx context.Context, channel Channel, externalRef string) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM payments WHERE channel = $1 AND external_ref = $2
	`, channel, externalRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// AttachExternalRef stores the adapter-issued reference and advances a
// pending record. The unique index on (channel, external_ref) rejects a
// reference already attached to another record.
func (r *repository) AttachExternalRef(ctx context.Context, id uuid.UUID, externalRef string, next Status) error {
	var query string
	if next == StatusCompleted {
		query = `
			UPDATE payments
			SET external_ref = $2, status = $3, completed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'pending'`
	} else {
		query = `
			UPDATE payments
			SET external_ref = $2, status = $3, updated_at = NOW()
			WHERE id = $1 AND status = 'pending'`
	}

	res, err := r.db.ExecContext(ctx, query, id, externalRef, next)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateExternalRef
		}
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidStateTransition
	}
	return nil
}

// Transition applies a status change only if the record is still in the
// expected state. Returns false when another writer got there first, which
// is how replayed confirmations are kept from firing effects twice.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to Status, settlementID string) (bool, error) {
	var settlement interface{}
	if settlementID != "" {
		settlement = settlementID
	}

	var query string
	switch to {
	case StatusCompleted:
		query = `
			UPDATE payments
			SET status = $2, settlement_id = COALESCE($3, settlement_id), completed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = $4`
	case StatusFailed:
		query = `
			UPDATE payments
			SET status = $2, settlement_id = COALESCE($3, settlement_id), failed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = $4`
	default:
		query = `
			UPDATE payments
			SET status = $2, settlement_id = COALESCE($3, settlement_id), updated_at = NOW()
			WHERE id = $1 AND status = $4`
	}

	res, err := r.db.ExecContext(ctx, query, id, to, settlement, from)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// MarkRefunded moves a completed record to refunded and merges refund
// metadata into the metadata blob. Returns false if the record was not
// completed anymore.
func (r *repository) MarkRefunded(ctx context.Context, id uuid.UUID, meta RefundMetadata) (bool, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return false, fmt.Errorf("failed to encode refund metadata: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'refunded',
		    refunded_at = NOW(),
		    updated_at = NOW(),
		    metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb
		WHERE id = $1 AND status = 'completed'
	`, id, payload)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *repository) ListByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]*Payment, error) {
	var payments []*Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE payer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, payerID, limit, offset)
	return payments, err
}

// SumCompletedByProject returns the cumulative completed amount for a
// project. Refunded payments fall out of the sum; a project already marked
// completed stays completed regardless.
func (r *repository) SumCompletedByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE project_id = $1 AND status = 'completed'
	`, projectID)
	return sum, err
}
