package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const selectColumns = `id, user_id, total_amount, payment_status, order_status, payment_method, created_at, updated_at`

// Repository defines order data access as consumed by the wallet settlement flow.
// MarkPaidTx runs inside a caller-owned transaction and does NOT commit or roll back.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Order, error)
	MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, paymentMethod string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new order repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT `+selectColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("order repository get by id: %w", err)
	}
	return &o, nil
}

// GetByIDTx re-reads the order inside an open transaction. Used by the settlement
// coordinator after the wallet row lock is held, so stale prechecks are repeated
// against committed state.
func (r *repository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Order, error) {
	var o Order
	err := tx.GetContext(ctx, &o, `SELECT `+selectColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("order repository get by id tx: %w", err)
	}
	return &o, nil
}

// MarkPaidTx transitions the order to paid/confirmed with the given payment method.
// The guard on payment_status keeps an already-paid order from being settled twice
// even if a caller skipped the precheck.
func (r *repository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, paymentMethod string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, order_status = $3, payment_method = $4, updated_at = now()
		WHERE id = $1 AND payment_status = $5
	`, id, PaymentStatusPaid, StatusConfirmed, paymentMethod, PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("order repository mark paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("order repository mark paid rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
