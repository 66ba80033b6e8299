package wallet_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/velora/velora-api/internal/domain/wallet"
	"github.com/velora/velora-api/internal/middleware"
	"github.com/velora/velora-api/internal/pkg/jwt"
	"github.com/velora/velora-api/internal/pkg/response"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *response.Meta `json:"meta"`
}

func newTestRouter(t *testing.T, db *sqlx.DB, initialBonus string) (http.Handler, *jwt.Service) {
	t.Helper()

	jwtService := jwt.NewService("integration-test-secret", time.Hour)
	handler := wallet.NewHandler(newTestService(t, db, initialBonus))
	auth := middleware.Auth(jwtService)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", handler.Routes(auth))
		r.Mount("/admin", handler.AdminRoutes(auth))
	})
	return r, jwtService
}

func performRequest(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
	return resp
}

func accessToken(t *testing.T, jwtService *jwt.Service, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := jwtService.GenerateAccessToken(userID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestMyWalletEndpointProvisions(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "100000")
	userID := createTestUser(t, db, "customer")
	token := accessToken(t, jwtService, userID, "customer")

	rec := performRequest(t, router, http.MethodGet, "/api/v1/wallet", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var first wallet.Wallet
	if err := json.Unmarshal(decodeResponse(t, rec).Data, &first); err != nil {
		t.Fatalf("decode wallet: %v", err)
	}
	if !first.Balance.Equal(decimal.RequireFromString("100000")) {
		t.Fatalf("expected initial bonus 100000, got %s", first.Balance)
	}
	if first.Status != wallet.StatusActive {
		t.Fatalf("expected active wallet, got %s", first.Status)
	}

	rec = performRequest(t, router, http.MethodGet, "/api/v1/wallet", token, nil)
	var second wallet.Wallet
	if err := json.Unmarshal(decodeResponse(t, rec).Data, &second); err != nil {
		t.Fatalf("decode wallet: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("repeat access returned a different wallet")
	}
}

func TestWalletEndpointsRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")

	rec := performRequest(t, router, http.MethodGet, "/api/v1/wallet", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	customerID := createTestUser(t, db, "customer")
	customerToken := accessToken(t, jwtService, customerID, "customer")

	rec = performRequest(t, router, http.MethodGet, "/api/v1/admin/wallets", customerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer on admin route, got %d", rec.Code)
	}
}

func TestPayOrderEndpoint(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")
	userID := createTestUser(t, db, "customer")
	seedWallet(t, db, userID, "1000000")
	orderID := createTestOrder(t, db, userID, "300000")
	token := accessToken(t, jwtService, userID, "customer")

	rec := performRequest(t, router, http.MethodPost, "/api/v1/wallet/pay", token,
		map[string]string{"order_id": orderID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var receipt wallet.PayOrderResponse
	if err := json.Unmarshal(decodeResponse(t, rec).Data, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if !receipt.NewBalance.Equal(decimal.RequireFromString("700000")) {
		t.Fatalf("expected new balance 700000, got %s", receipt.NewBalance)
	}
	if receipt.OrderID != orderID {
		t.Fatalf("receipt references wrong order")
	}

	// Replay is rejected without touching the balance.
	rec = performRequest(t, router, http.MethodPost, "/api/v1/wallet/pay", token,
		map[string]string{"order_id": orderID.String()})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", rec.Code)
	}
	if got := walletBalance(t, db, userID); !got.Equal(decimal.RequireFromString("700000")) {
		t.Fatalf("replay changed balance: %s", got)
	}
}

func TestPayOrderEndpointInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")
	userID := createTestUser(t, db, "customer")
	seedWallet(t, db, userID, "100000")
	orderID := createTestOrder(t, db, userID, "500000")
	token := accessToken(t, jwtService, userID, "customer")

	rec := performRequest(t, router, http.MethodPost, "/api/v1/wallet/pay", token,
		map[string]string{"order_id": orderID.String()})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT error, got %+v", resp.Error)
	}
	if resp.Error.Details["required"] != "500000" || resp.Error.Details["available"] != "100000" {
		t.Fatalf("unexpected details: %v", resp.Error.Details)
	}
}

func TestPayOrderEndpointValidation(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")
	userID := createTestUser(t, db, "customer")
	token := accessToken(t, jwtService, userID, "customer")

	rec := performRequest(t, router, http.MethodPost, "/api/v1/wallet/pay", token,
		map[string]string{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing order_id, got %d", rec.Code)
	}

	rec = performRequest(t, router, http.MethodPost, "/api/v1/wallet/pay", token,
		map[string]string{"order_id": "not-a-uuid"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed order_id, got %d", rec.Code)
	}
}

func TestAdminDepositEndpoint(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")
	adminID := createTestUser(t, db, "admin")
	userID := createTestUser(t, db, "customer")
	seedWallet(t, db, userID, "50000")
	adminToken := accessToken(t, jwtService, adminID, "admin")

	rec := performRequest(t, router, http.MethodPost, "/api/v1/admin/wallets/deposit", adminToken,
		map[string]interface{}{
			"user_id":     userID.String(),
			"amount":      "200000",
			"description": "compensation",
		})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Wallet      wallet.Wallet      `json:"wallet"`
		Transaction wallet.Transaction `json:"transaction"`
	}
	if err := json.Unmarshal(decodeResponse(t, rec).Data, &payload); err != nil {
		t.Fatalf("decode deposit payload: %v", err)
	}
	if !payload.Wallet.Balance.Equal(decimal.RequireFromString("250000")) {
		t.Fatalf("expected balance 250000, got %s", payload.Wallet.Balance)
	}
	if payload.Transaction.CreatedBy != adminID {
		t.Fatalf("expected created_by=%s, got %s", adminID, payload.Transaction.CreatedBy)
	}

	// Unknown target user.
	rec = performRequest(t, router, http.MethodPost, "/api/v1/admin/wallets/deposit", adminToken,
		map[string]interface{}{"user_id": uuid.New().String(), "amount": "100"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestAdminListWalletsEndpoint(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")
	adminID := createTestUser(t, db, "admin")
	userID := createTestUser(t, db, "customer")
	seedWallet(t, db, userID, "100")
	adminToken := accessToken(t, jwtService, adminID, "admin")

	rec := performRequest(t, router, http.MethodGet, "/api/v1/admin/wallets?search=wallet_", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if resp.Meta == nil || resp.Meta.Total != 1 {
		t.Fatalf("expected 1 wallet in listing, got meta %+v", resp.Meta)
	}

	var data struct {
		Wallets []wallet.WalletWithOwner `json:"wallets"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode wallets: %v", err)
	}
	if len(data.Wallets) != 1 || data.Wallets[0].UserID != userID {
		t.Fatalf("unexpected wallets payload: %+v", data.Wallets)
	}
	if data.Wallets[0].OwnerEmail == "" {
		t.Fatalf("expected owner email in listing")
	}

	rec = performRequest(t, router, http.MethodGet, "/api/v1/admin/wallets?search=no_such_owner", adminToken, nil)
	if resp := decodeResponse(t, rec); resp.Meta == nil || resp.Meta.Total != 0 {
		t.Fatalf("expected empty listing for unmatched search")
	}
}

func TestAdminUpdateStatusEndpoint(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")
	adminID := createTestUser(t, db, "admin")
	userID := createTestUser(t, db, "customer")
	seedWallet(t, db, userID, "100000")
	orderID := createTestOrder(t, db, userID, "100")
	adminToken := accessToken(t, jwtService, adminID, "admin")
	userToken := accessToken(t, jwtService, userID, "customer")

	var walletID uuid.UUID
	if err := db.Get(&walletID, `SELECT id FROM wallets WHERE user_id = $1`, userID); err != nil {
		t.Fatalf("get wallet id: %v", err)
	}

	rec := performRequest(t, router, http.MethodPut, "/api/v1/admin/wallets/"+walletID.String()+"/status", adminToken,
		map[string]string{"status": "suspended"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated wallet.Wallet
	if err := json.Unmarshal(decodeResponse(t, rec).Data, &updated); err != nil {
		t.Fatalf("decode wallet: %v", err)
	}
	if updated.Status != wallet.StatusSuspended {
		t.Fatalf("expected suspended, got %s", updated.Status)
	}

	// Suspended wallet cannot pay.
	rec = performRequest(t, router, http.MethodPost, "/api/v1/wallet/pay", userToken,
		map[string]string{"order_id": orderID.String()})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for suspended wallet, got %d", rec.Code)
	}

	rec = performRequest(t, router, http.MethodPut, "/api/v1/admin/wallets/"+walletID.String()+"/status", adminToken,
		map[string]string{"status": "deleted"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status, got %d", rec.Code)
	}
}

func TestMyTransactionsEndpointPagination(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	router, jwtService := newTestRouter(t, db, "0")
	svc := newTestService(t, db, "0")
	adminID := createTestUser(t, db, "admin")
	userID := createTestUser(t, db, "customer")
	token := accessToken(t, jwtService, userID, "customer")

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Deposit(context.Background(), adminID, userID, decimal.RequireFromString("100"), ""); err != nil {
			t.Fatalf("deposit failed: %v", err)
		}
	}

	rec := performRequest(t, router, http.MethodGet, "/api/v1/wallet/transactions?page=1&limit=2", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if resp.Meta == nil || resp.Meta.Total != 3 || resp.Meta.Pages != 2 || !resp.Meta.HasNext {
		t.Fatalf("unexpected meta: %+v", resp.Meta)
	}

	var data struct {
		Transactions []wallet.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if len(data.Transactions) != 2 {
		t.Fatalf("expected 2 transactions on page 1, got %d", len(data.Transactions))
	}

	rec = performRequest(t, router, http.MethodGet, "/api/v1/wallet/transactions?type=bogus", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid type filter, got %d", rec.Code)
	}
}
