package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/velora/velora-api/internal/domain/order"
	"github.com/velora/velora-api/internal/domain/user"
	"github.com/velora/velora-api/internal/middleware"
	"github.com/velora/velora-api/internal/pkg/response"
	"github.com/velora/velora-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// MyWallet returns the caller's wallet, provisioning one on first access
func (h *Handler) MyWallet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.GetOrCreate(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.OK(w, wallet)
}

// MyTransactions returns the caller's paginated ledger history
func (h *Handler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	filter, ok := parseTransactionFilter(w, r)
	if !ok {
		return
	}

	transactions, total, err := h.svc.ListMyTransactions(r.Context(), userID, filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.WithMeta(w, map[string]interface{}{"transactions": transactions},
		response.NewMeta(total, filter.Page, filter.Limit))
}

// PayOrder settles an order from the caller's wallet
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req PayOrderRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		response.BadRequest(w, "invalid order_id")
		return
	}

	receipt, err := h.svc.PayOrder(r.Context(), userID, orderID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.OK(w, receipt)
}

// AdminListWallets returns a searchable page of all wallets with owners
func (h *Handler) AdminListWallets(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	search := r.URL.Query().Get("search")

	wallets, total, err := h.svc.ListWallets(r.Context(), search, page, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.WithMeta(w, map[string]interface{}{"wallets": wallets},
		response.NewMeta(total, page, limit))
}

// AdminListTransactions returns a filtered page of all ledger entries
func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseTransactionFilter(w, r)
	if !ok {
		return
	}

	if rawUserID := r.URL.Query().Get("user_id"); rawUserID != "" {
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			response.BadRequest(w, "invalid user_id")
			return
		}
		filter.UserID = uuid.NullUUID{UUID: userID, Valid: true}
	}

	transactions, total, err := h.svc.ListAllTransactions(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.WithMeta(w, map[string]interface{}{"transactions": transactions},
		response.NewMeta(total, filter.Page, filter.Limit))
}

// AdminUserTransactions returns one user's ledger history
func (h *Handler) AdminUserTransactions(w http.ResponseWriter, r *http.Request) {
	targetUserID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	filter, ok := parseTransactionFilter(w, r)
	if !ok {
		return
	}

	transactions, total, err := h.svc.ListUserTransactions(r.Context(), targetUserID, filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.WithMeta(w, map[string]interface{}{"transactions": transactions},
		response.NewMeta(total, filter.Page, filter.Limit))
}

// AdminDeposit credits a user's wallet
func (h *Handler) AdminDeposit(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	if adminID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req DepositRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	targetUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(w, "invalid user_id")
		return
	}

	wallet, entry, err := h.svc.Deposit(r.Context(), adminID, targetUserID, req.Amount, req.Description)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"wallet":      wallet,
		"transaction": entry,
	})
}

// AdminUpdateStatus sets a wallet's status
func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid wallet id")
		return
	}

	var req UpdateStatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	wallet, err := h.svc.UpdateWalletStatus(r.Context(), walletID, Status(req.Status))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.OK(w, wallet)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *InsufficientFundsError

	switch {
	case errors.As(err, &insufficient):
		response.ConflictWithDetails(w, insufficient.Error(), map[string]string{
			"required":  insufficient.Required.String(),
			"available": insufficient.Available.String(),
		})
	case errors.Is(err, ErrOrderAlreadyPaid):
		response.Conflict(w, "order already paid")
	case errors.Is(err, ErrOrderCancelled):
		response.Conflict(w, "cannot pay cancelled order")
	case errors.Is(err, ErrWalletNotActive):
		response.Conflict(w, "wallet locked")
	case errors.Is(err, ErrWalletNotFound):
		response.NotFound(w, "wallet not found")
	case errors.Is(err, order.ErrNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrUserNotFound), errors.Is(err, user.ErrNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "amount must be greater than zero")
	case errors.Is(err, ErrInvalidStatus):
		response.BadRequest(w, "invalid wallet status")
	default:
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("wallet request failed")
		response.InternalError(w)
	}
}

func parsePagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func parseTransactionFilter(w http.ResponseWriter, r *http.Request) (TransactionFilter, bool) {
	page, limit := parsePagination(r)
	filter := TransactionFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
		Page:   page,
		Limit:  limit,
	}

	if err := validator.ValidateVar(filter.Type, "tx_type"); err != nil {
		response.BadRequest(w, "invalid type filter")
		return TransactionFilter{}, false
	}
	if err := validator.ValidateVar(filter.Status, "tx_status"); err != nil {
		response.BadRequest(w, "invalid status filter")
		return TransactionFilter{}, false
	}

	return filter, true
}

// Routes returns the user-facing wallet routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.MyWallet)
	r.Get("/transactions", h.MyTransactions)
	r.Post("/pay", h.PayOrder)
	return r
}

// AdminRoutes returns the admin wallet routes
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Get("/wallets", h.AdminListWallets)
	r.Get("/wallets/transactions", h.AdminListTransactions)
	r.Post("/wallets/deposit", h.AdminDeposit)
	r.Put("/wallets/{id}/status", h.AdminUpdateStatus)
	r.Get("/users/{id}/transactions", h.AdminUserTransactions)
	return r
}
