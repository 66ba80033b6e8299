package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidStatus     = errors.New("invalid wallet status")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletNotActive   = errors.New("wallet locked")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrOrderAlreadyPaid  = errors.New("order already paid")
	ErrOrderCancelled    = errors.New("cannot pay cancelled order")
	ErrUserNotFound      = errors.New("user not found")
)

// InsufficientFundsError carries the required and available amounts so callers
// can react (e.g. prompt a top-up) without parsing the message.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.Required, e.Available)
}

// Is lets errors.Is(err, ErrInsufficientFunds) match
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
