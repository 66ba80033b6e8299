package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, balance, status, created_at, updated_at`

const transactionColumns = `id, wallet_id, type, amount, description, order_id, status, balance_before, balance_after, created_by, created_at`

// Repository provides wallet and ledger data access.
//
// Balance mutations never happen here in isolation: the Tx-suffixed methods run
// inside a caller-owned transaction so the service can pair every balance write
// with a ledger insert (and, for settlements, an order update) atomically.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// BeginTx opens a transaction for a balance-mutating sequence
func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// GetByUserID returns the wallet owned by userID
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet repository get by user: %w", err)
	}
	return &w, nil
}

// GetByID returns a wallet by its own id
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet repository get by id: %w", err)
	}
	return &w, nil
}

// LockByUserIDTx takes the exclusive row lock that serializes concurrent
// payments and deposits against one wallet. The lock is held until the
// enclosing transaction commits or rolls back.
func (r *Repository) LockByUserIDTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet repository lock: %w", err)
	}
	return &w, nil
}

// CreateTx inserts a wallet for userID if none exists yet. Returns true when a
// row was actually created, false when the user already had one.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance decimal.Decimal) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, status)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, balance, StatusActive)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("wallet repository create: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("wallet repository create rows: %w", err)
	}
	return rows == 1, nil
}

// UpdateBalanceTx writes a new balance for a locked wallet row
func (r *Repository) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $2, updated_at = now() WHERE id = $1
	`, walletID, balance)
	if err != nil {
		return fmt.Errorf("wallet repository update balance: %w", err)
	}
	return nil
}

// InsertTransactionTx appends a ledger entry within the caller's transaction.
// The generated id and timestamp are written back into t.
func (r *Repository) InsertTransactionTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO wallet_transactions (
			id, wallet_id, type, amount, description, order_id, status, balance_before, balance_after, created_by
		)
		VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING id, created_at
	`, t.WalletID, t.Type, t.Amount, t.Description, t.OrderID, t.Status, t.BalanceBefore, t.BalanceAfter, t.CreatedBy).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("wallet repository insert transaction: %w", err)
	}
	return nil
}

// UpdateStatus sets the wallet status and returns the updated row
func (r *Repository) UpdateStatus(ctx context.Context, walletID uuid.UUID, status Status) (*Wallet, error) {
	var w Wallet
	err := r.db.QueryRowxContext(ctx, `
		UPDATE wallets SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+walletColumns+`
	`, walletID, status).StructScan(&w)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet repository update status: %w", err)
	}
	return &w, nil
}

// ListWallets returns a page of wallets with their owners, optionally filtered
// by a name/email search term. Admin use.
func (r *Repository) ListWallets(ctx context.Context, search string, page, limit int) ([]WalletWithOwner, int, error) {
	where := ""
	args := make([]interface{}, 0, 4)
	idx := 1

	if search = strings.TrimSpace(search); search != "" {
		where = fmt.Sprintf(" WHERE u.name ILIKE $%d OR u.email ILIKE $%d", idx, idx)
		args = append(args, "%"+search+"%")
		idx++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM wallets w JOIN users u ON u.id = w.user_id` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("wallet repository count wallets: %w", err)
	}

	query := `
		SELECT w.id, w.user_id, w.balance, w.status, w.created_at, w.updated_at,
		       u.name AS owner_name, u.email AS owner_email
		FROM wallets w
		JOIN users u ON u.id = w.user_id` + where +
		fmt.Sprintf(` ORDER BY w.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, (page-1)*limit)

	wallets := make([]WalletWithOwner, 0)
	if err := r.db.SelectContext(ctx, &wallets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("wallet repository list wallets: %w", err)
	}

	return wallets, total, nil
}

// ListTransactions returns a filtered page of ledger entries, newest first,
// with the total row count for pagination metadata.
func (r *Repository) ListTransactions(ctx context.Context, walletID uuid.NullUUID, filter TransactionFilter) ([]Transaction, int, error) {
	where := " WHERE 1=1"
	args := make([]interface{}, 0, 6)
	idx := 1

	if walletID.Valid {
		where += fmt.Sprintf(" AND t.wallet_id = $%d", idx)
		args = append(args, walletID.UUID)
		idx++
	}
	if filter.UserID.Valid {
		where += fmt.Sprintf(" AND w.user_id = $%d", idx)
		args = append(args, filter.UserID.UUID)
		idx++
	}
	if filter.Type != "" {
		where += fmt.Sprintf(" AND t.type = $%d", idx)
		args = append(args, filter.Type)
		idx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND t.status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}

	from := ` FROM wallet_transactions t JOIN wallets w ON w.id = t.wallet_id`

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+from+where, args...); err != nil {
		return nil, 0, fmt.Errorf("wallet repository count transactions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	query := `
		SELECT t.id, t.wallet_id, t.type, t.amount, t.description, t.order_id,
		       t.status, t.balance_before, t.balance_after, t.created_by, t.created_at` +
		from + where +
		fmt.Sprintf(` ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, (page-1)*limit)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("wallet repository list transactions: %w", err)
	}

	return transactions, total, nil
}
