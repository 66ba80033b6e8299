package order

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the payment sub-state of an order.
// paid is terminal; there is no transition back to pending.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Status represents the order lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// PaymentMethodWallet marks orders settled from the internal wallet
const PaymentMethodWallet = "wallet"

// Order represents an order as consumed by the wallet settlement flow
type Order struct {
	ID            uuid.UUID       `db:"id"`
	UserID        uuid.UUID       `db:"user_id"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	PaymentStatus PaymentStatus   `db:"payment_status"`
	Status        Status          `db:"order_status"`
	PaymentMethod sql.NullString  `db:"payment_method"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsPaid returns true if the order has already been settled
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// IsCancelled returns true if the order was cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == StatusCancelled
}

// Payable reports whether the settlement coordinator may pay this order
func (o *Order) Payable() bool {
	return !o.IsPaid() && !o.IsCancelled()
}
