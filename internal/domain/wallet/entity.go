package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents wallet status (matches wallet_status enum).
// Wallets are never deleted; a retired wallet is set to inactive or suspended
// so its ledger history stays intact.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// IsValidStatus checks if status is a known wallet status
func IsValidStatus(status string) bool {
	switch Status(status) {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// TransactionType represents the kind of balance mutation a ledger entry records
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypePayment  TransactionType = "payment"
	TransactionTypeRefund   TransactionType = "refund"
)

// Credits reports whether this transaction type adds to the balance.
// deposit and refund credit the wallet; withdraw and payment debit it.
func (t TransactionType) Credits() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeRefund
}

// SignedAmount returns the balance delta for the given positive amount
func (t TransactionType) SignedAmount(amount decimal.Decimal) decimal.Decimal {
	if t.Credits() {
		return amount
	}
	return amount.Neg()
}

// TransactionStatus represents ledger entry status
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Wallet holds one balance record per user (unique on user_id).
// Balance is only ever mutated together with a ledger entry inside the same
// database transaction, with the row locked FOR UPDATE for the whole
// read-check-write sequence.
type Wallet struct {
	ID      uuid.UUID       `db:"id" json:"id"`
	UserID  uuid.UUID       `db:"user_id" json:"user_id"`
	Balance decimal.Decimal `db:"balance" json:"balance"`
	Status  Status          `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive returns true if the wallet can pay
func (w *Wallet) IsActive() bool {
	return w.Status == StatusActive
}

// Transaction is an immutable ledger entry. Rows are append-only: no update or
// delete path exists anywhere in the repository.
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	WalletID      uuid.UUID         `db:"wallet_id" json:"wallet_id"`
	Type          TransactionType   `db:"type" json:"type"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	Description   string            `db:"description" json:"description"`
	OrderID       uuid.NullUUID     `db:"order_id" json:"order_id,omitempty"`
	Status        TransactionStatus `db:"status" json:"status"`
	BalanceBefore decimal.Decimal   `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal   `db:"balance_after" json:"balance_after"`
	CreatedBy     uuid.UUID         `db:"created_by" json:"created_by"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// Consistent verifies the completed-entry invariant:
// balance_after = balance_before + signed(amount, type).
func (t *Transaction) Consistent() bool {
	return t.BalanceAfter.Equal(t.BalanceBefore.Add(t.Type.SignedAmount(t.Amount)))
}
