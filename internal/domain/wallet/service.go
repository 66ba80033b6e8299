package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/velora/velora-api/internal/domain/order"
	"github.com/velora/velora-api/internal/domain/user"
)

const (
	initialBonusDescription   = "initial wallet bonus"
	defaultDepositDescription = "manual deposit"
)

// Service coordinates wallet provisioning, order settlement and deposits.
//
// All balance mutations follow the same shape: open a transaction, lock the
// wallet row FOR UPDATE, re-check preconditions against the locked state,
// write the new balance together with its ledger entry (and the order update,
// for settlements), then commit. Any failure after the lock rolls the whole
// sequence back.
type Service struct {
	repo         *Repository
	orders       order.Repository
	users        user.Repository
	cache        *Cache
	initialBonus decimal.Decimal
}

func NewService(repo *Repository, orders order.Repository, users user.Repository, cache *Cache, initialBonus decimal.Decimal) *Service {
	if initialBonus.IsNegative() {
		initialBonus = decimal.Zero
	}
	return &Service{
		repo:         repo,
		orders:       orders,
		users:        users,
		cache:        cache,
		initialBonus: initialBonus,
	}
}

// GetOrCreate returns the caller's wallet, provisioning one with the initial
// bonus on first access. Provisioning is idempotent: a concurrent first call
// creates exactly one wallet and one bonus ledger entry.
func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if w := s.cache.Get(ctx, userID); w != nil {
		return w, nil
	}

	w, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		s.cache.Set(ctx, w)
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	w, err = s.provision(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, w)
	return w, nil
}

// provision creates the wallet with the signup bonus and its paired deposit
// ledger entry in one transaction. Losing the insert race to a concurrent
// request is fine: the existing row is returned and no second entry is written.
func (s *Service) provision(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet service provision: %w", err)
	}
	defer tx.Rollback()

	created, err := s.repo.CreateTx(ctx, tx, userID, s.initialBonus)
	if err != nil {
		return nil, err
	}

	w, err := s.repo.LockByUserIDTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if created && s.initialBonus.IsPositive() {
		entry := &Transaction{
			WalletID:      w.ID,
			Type:          TransactionTypeDeposit,
			Amount:        s.initialBonus,
			Description:   initialBonusDescription,
			Status:        TransactionStatusCompleted,
			BalanceBefore: decimal.Zero,
			BalanceAfter:  s.initialBonus,
			CreatedBy:     userID,
		}
		if err := s.repo.InsertTransactionTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("wallet service provision commit: %w", err)
	}

	if created {
		log.Info().
			Str("user_id", userID.String()).
			Str("wallet_id", w.ID.String()).
			Str("initial_bonus", s.initialBonus.String()).
			Msg("wallet provisioned")
	}

	return w, nil
}

// PayOrder settles one order from the caller's wallet, atomically: wallet row
// locked, balance debited, payment ledger entry appended, order marked paid.
// Preconditions are checked before the lock to fail fast, then repeated under
// the lock against fresh state.
func (s *Service) PayOrder(ctx context.Context, userID, orderID uuid.UUID) (*PayOrderResponse, error) {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Hide other users' orders
	if ord.UserID != userID {
		return nil, order.ErrNotFound
	}
	if err := checkOrderPayable(ord); err != nil {
		return nil, err
	}

	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := checkWalletCovers(w, ord.TotalAmount); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet service pay order: %w", err)
	}
	defer tx.Rollback()

	// From here every check runs against state frozen by the row lock.
	w, err = s.repo.LockByUserIDTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	ord, err = s.orders.GetByIDTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID {
		return nil, order.ErrNotFound
	}
	if err := checkOrderPayable(ord); err != nil {
		return nil, err
	}
	if err := checkWalletCovers(w, ord.TotalAmount); err != nil {
		return nil, err
	}

	newBalance := w.Balance.Sub(ord.TotalAmount)

	if err := s.repo.UpdateBalanceTx(ctx, tx, w.ID, newBalance); err != nil {
		return nil, err
	}

	entry := &Transaction{
		WalletID:      w.ID,
		Type:          TransactionTypePayment,
		Amount:        ord.TotalAmount,
		Description:   fmt.Sprintf("payment for order %s", ord.ID),
		OrderID:       uuid.NullUUID{UUID: ord.ID, Valid: true},
		Status:        TransactionStatusCompleted,
		BalanceBefore: w.Balance,
		BalanceAfter:  newBalance,
		CreatedBy:     userID,
	}
	if err := s.repo.InsertTransactionTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := s.orders.MarkPaidTx(ctx, tx, ord.ID, order.PaymentMethodWallet); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("wallet service pay order commit: %w", err)
	}

	s.cache.Invalidate(ctx, userID)

	log.Info().
		Str("user_id", userID.String()).
		Str("order_id", ord.ID.String()).
		Str("amount", ord.TotalAmount.String()).
		Str("new_balance", newBalance.String()).
		Msg("order settled from wallet")

	return &PayOrderResponse{
		OrderID:    ord.ID,
		Amount:     ord.TotalAmount,
		NewBalance: newBalance,
		Transaction: TransactionSummary{
			ID:     entry.ID,
			Type:   entry.Type,
			Status: entry.Status,
		},
	}, nil
}

// Deposit credits a user's wallet on behalf of an admin. A missing wallet is
// created with balance zero inside the same transaction before the credit.
func (s *Service) Deposit(ctx context.Context, adminID, targetUserID uuid.UUID, amount decimal.Decimal, description string) (*Wallet, *Transaction, error) {
	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}

	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		return nil, nil, err
	}

	if description == "" {
		description = defaultDepositDescription
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("wallet service deposit: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.repo.CreateTx(ctx, tx, targetUserID, decimal.Zero); err != nil {
		return nil, nil, err
	}

	w, err := s.repo.LockByUserIDTx(ctx, tx, targetUserID)
	if err != nil {
		return nil, nil, err
	}

	newBalance := w.Balance.Add(amount)

	if err := s.repo.UpdateBalanceTx(ctx, tx, w.ID, newBalance); err != nil {
		return nil, nil, err
	}

	entry := &Transaction{
		WalletID:      w.ID,
		Type:          TransactionTypeDeposit,
		Amount:        amount,
		Description:   description,
		Status:        TransactionStatusCompleted,
		BalanceBefore: w.Balance,
		BalanceAfter:  newBalance,
		CreatedBy:     adminID,
	}
	if err := s.repo.InsertTransactionTx(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("wallet service deposit commit: %w", err)
	}

	w.Balance = newBalance
	s.cache.Invalidate(ctx, targetUserID)

	log.Info().
		Str("admin_id", adminID.String()).
		Str("user_id", targetUserID.String()).
		Str("amount", amount.String()).
		Str("new_balance", newBalance.String()).
		Msg("wallet deposit applied")

	return w, entry, nil
}

// ListMyTransactions returns the caller's ledger page. A user without a wallet
// simply has no history; listing does not provision.
func (s *Service) ListMyTransactions(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]Transaction, int, error) {
	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return []Transaction{}, 0, nil
		}
		return nil, 0, err
	}

	filter.UserID = uuid.NullUUID{}
	return s.repo.ListTransactions(ctx, uuid.NullUUID{UUID: w.ID, Valid: true}, filter)
}

// ListAllTransactions returns a filtered ledger page across all wallets. Admin use.
func (s *Service) ListAllTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	return s.repo.ListTransactions(ctx, uuid.NullUUID{}, filter)
}

// ListUserTransactions returns one user's ledger page. Admin use.
func (s *Service) ListUserTransactions(ctx context.Context, targetUserID uuid.UUID, filter TransactionFilter) ([]Transaction, int, error) {
	filter.UserID = uuid.NullUUID{UUID: targetUserID, Valid: true}
	return s.repo.ListTransactions(ctx, uuid.NullUUID{}, filter)
}

// ListWallets returns a page of wallets with owners, searchable by name/email. Admin use.
func (s *Service) ListWallets(ctx context.Context, search string, page, limit int) ([]WalletWithOwner, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return s.repo.ListWallets(ctx, search, page, limit)
}

// UpdateWalletStatus sets a wallet's status. Wallets are never deleted; this is
// the only lifecycle control admins have.
func (s *Service) UpdateWalletStatus(ctx context.Context, walletID uuid.UUID, status Status) (*Wallet, error) {
	if !IsValidStatus(string(status)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	w, err := s.repo.UpdateStatus(ctx, walletID, status)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, w.UserID)

	log.Info().
		Str("wallet_id", w.ID.String()).
		Str("status", string(w.Status)).
		Msg("wallet status updated")

	return w, nil
}

func checkOrderPayable(ord *order.Order) error {
	if ord.IsPaid() {
		return ErrOrderAlreadyPaid
	}
	if ord.IsCancelled() {
		return ErrOrderCancelled
	}
	return nil
}

func checkWalletCovers(w *Wallet, amount decimal.Decimal) error {
	if !w.IsActive() {
		return ErrWalletNotActive
	}
	if w.Balance.LessThan(amount) {
		return &InsufficientFundsError{Required: amount, Available: w.Balance}
	}
	return nil
}
