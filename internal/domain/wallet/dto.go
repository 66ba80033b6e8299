package wallet

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayOrderRequest for settling an order from the wallet
type PayOrderRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

// DepositRequest for an admin-initiated credit.
// Amount accepts a JSON number or string; positivity is checked by the service.
type DepositRequest struct {
	UserID      string          `json:"user_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty" validate:"omitempty,max=255"`
}

// UpdateStatusRequest for admin wallet status changes
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,wallet_status"`
}

// TransactionFilter narrows transaction listings.
// UserID is only honored on admin-scoped endpoints.
type TransactionFilter struct {
	Type   string
	Status string
	UserID uuid.NullUUID
	Page   int
	Limit  int
}

// PayOrderResponse summarizes a successful settlement
type PayOrderResponse struct {
	OrderID     uuid.UUID          `json:"orderId"`
	Amount      decimal.Decimal    `json:"amount"`
	NewBalance  decimal.Decimal    `json:"newBalance"`
	Transaction TransactionSummary `json:"transaction"`
}

// TransactionSummary is the ledger entry slice returned from a settlement
type TransactionSummary struct {
	ID     uuid.UUID         `json:"id"`
	Type   TransactionType   `json:"type"`
	Status TransactionStatus `json:"status"`
}

// WalletWithOwner pairs a wallet with its owner for admin listings
type WalletWithOwner struct {
	Wallet
	OwnerName  string `db:"owner_name" json:"owner_name"`
	OwnerEmail string `db:"owner_email" json:"owner_email"`
}
