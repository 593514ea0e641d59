package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"shop-svc/checkout"
	"shop-svc/gateway"
	"shop-svc/models"
)

type stubGateway struct {
	link         string
	linkErr      error
	verification *gateway.Verification
	verifyErr    error
	verifyCalls  int
}

func (g *stubGateway) CreatePaymentLink(ctx context.Context, req gateway.PaymentLinkRequest) (string, error) {
	return g.link, g.linkErr
}

func (g *stubGateway) VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Verification, error) {
	g.verifyCalls++
	return g.verification, g.verifyErr
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func newCheckoutRouter(t *testing.T, db *sqlx.DB, store *stubStore, gw *stubGateway, finalizer *stubFinalizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewCheckoutHandler(db, store, gw, finalizer, zaptest.NewLogger(t))
	router := gin.New()
	router.POST("/checkout/card", handler.InitiateCardCheckout)
	router.GET("/checkout/verify", handler.CompleteCardCheckout)
	return router
}

func cardCheckoutBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"product_id": 1, "quantity": 2},
		},
		"shipping_address": map[string]string{
			"full_name": "Ada Obi",
			"email":     "ada@example.com",
			"phone":     "+2348012345678",
			"address":   "12 Marina Road",
			"state":     "Lagos",
			"country":   "Nigeria",
		},
		"shipping_fee": 15.0,
	})
	return body
}

func TestInitiateCardCheckoutReturnsLink(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, price, stock FROM products WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "stock"}).
			AddRow(1, "Keyboard", 100.00, 10))

	store := &stubStore{}
	gw := &stubGateway{link: "https://pay.example.com/abc"}
	router := newCheckoutRouter(t, db, store, gw, &stubFinalizer{})

	req := httptest.NewRequest(http.MethodPost, "/checkout/card", bytes.NewReader(cardCheckoutBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["link"] != "https://pay.example.com/abc" {
		t.Errorf("link = %q", resp["link"])
	}
	if resp["tx_ref"] == "" {
		t.Error("tx_ref missing from response")
	}
	staged, ok := store.purchases[resp["tx_ref"]]
	if !ok {
		t.Fatal("pending purchase not staged under returned tx_ref")
	}
	if staged.Amount != 215.00 {
		t.Errorf("staged amount = %.2f, want 215.00 (2 x 100 + 15 shipping)", staged.Amount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInitiateCardCheckoutInsufficientStock(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, price, stock FROM products WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "stock"}).
			AddRow(1, "Keyboard", 100.00, 1))

	store := &stubStore{}
	gw := &stubGateway{link: "https://pay.example.com/abc"}
	router := newCheckoutRouter(t, db, store, gw, &stubFinalizer{})

	req := httptest.NewRequest(http.MethodPost, "/checkout/card", bytes.NewReader(cardCheckoutBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(store.purchases) != 0 {
		t.Error("purchase staged despite stock rejection")
	}
}

func TestInitiateCardCheckoutGatewayDown(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, price, stock FROM products WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "stock"}).
			AddRow(1, "Keyboard", 100.00, 10))

	store := &stubStore{}
	gw := &stubGateway{linkErr: errors.New("gateway timeout")}
	router := newCheckoutRouter(t, db, store, gw, &stubFinalizer{})

	req := httptest.NewRequest(http.MethodPost, "/checkout/card", bytes.NewReader(cardCheckoutBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestCompleteCardCheckoutMissingTransactionID(t *testing.T) {
	db, _ := newMockDB(t)
	router := newCheckoutRouter(t, db, &stubStore{}, &stubGateway{}, &stubFinalizer{})

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCompleteCardCheckoutFailedPayment(t *testing.T) {
	db, _ := newMockDB(t)
	finalizer := &stubFinalizer{}
	// Verification returning nil means the charge did not succeed.
	router := newCheckoutRouter(t, db, &stubStore{}, &stubGateway{}, finalizer)

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify?transaction_id=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", w.Code)
	}
	if finalizer.calls != 0 {
		t.Errorf("finalizer calls = %d, want 0 for unsuccessful payment", finalizer.calls)
	}
}

func TestCompleteCardCheckoutVerificationUnavailable(t *testing.T) {
	db, _ := newMockDB(t)
	gw := &stubGateway{verifyErr: errors.New("gateway timeout")}
	router := newCheckoutRouter(t, db, &stubStore{}, gw, &stubFinalizer{})

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify?transaction_id=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestCompleteCardCheckoutFinalizes(t *testing.T) {
	db, _ := newMockDB(t)
	store := &stubStore{}
	_ = store.CreatePendingPurchase(context.Background(), "TX-1",
		json.RawMessage(`{"items":[{"product_id":1,"quantity":1}],"shipping_address":{"full_name":"Ada Obi","email":"ada@example.com","phone":"+2348012345678","address":"12 Marina Road","state":"Lagos","country":"Nigeria"}}`), 115.00)

	gw := &stubGateway{verification: &gateway.Verification{
		Status: "successful", TxRef: "TX-1", GatewayRef: "FLW-001", Amount: 115.0, Currency: "NGN",
	}}
	finalizer := &stubFinalizer{result: &checkout.Result{OrderID: "ORD-12345-ABCDEF", Order: &models.Order{}}}
	router := newCheckoutRouter(t, db, store, gw, finalizer)

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify?transaction_id=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if finalizer.lastTx != "TX-1" {
		t.Errorf("finalized tx_ref = %q, want TX-1", finalizer.lastTx)
	}
}

func TestCompleteCardCheckoutDuplicate(t *testing.T) {
	db, _ := newMockDB(t)
	store := &stubStore{}
	_ = store.CreatePendingPurchase(context.Background(), "TX-1", json.RawMessage(`{}`), 0)

	gw := &stubGateway{verification: &gateway.Verification{Status: "successful", TxRef: "TX-1"}}
	finalizer := &stubFinalizer{result: &checkout.Result{OrderID: "ORD-12345-ABCDEF", AlreadyProcessed: true}}
	router := newCheckoutRouter(t, db, store, gw, finalizer)

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify?transaction_id=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for duplicate completion", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["order_id"] != "ORD-12345-ABCDEF" {
		t.Errorf("order_id = %q, want the original order id", resp["order_id"])
	}
}

// The gateway reports what was actually charged; a verification below the
// quoted total must not finalize the order even though its status is
// successful.
func TestCompleteCardCheckoutUnderpaidCharge(t *testing.T) {
	db, _ := newMockDB(t)
	store := &stubStore{}
	_ = store.CreatePendingPurchase(context.Background(), "TX-1",
		json.RawMessage(`{"items":[{"product_id":1,"quantity":1}]}`), 255.00)

	gw := &stubGateway{verification: &gateway.Verification{
		Status: "successful", TxRef: "TX-1", GatewayRef: "FLW-001", Amount: 1.00, Currency: "NGN",
	}}
	finalizer := &stubFinalizer{result: &checkout.Result{OrderID: "ORD-12345-ABCDEF"}}
	router := newCheckoutRouter(t, db, store, gw, finalizer)

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify?transaction_id=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402: %s", w.Code, w.Body.String())
	}
	if finalizer.calls != 0 {
		t.Errorf("finalizer calls = %d, want 0 for underpaid charge", finalizer.calls)
	}
	if store.purchases["TX-1"].Status != models.PurchaseStatusPending {
		t.Errorf("purchase status = %s, want pending left for support", store.purchases["TX-1"].Status)
	}
}

// counterTotal sums a counter across all its label combinations.
func counterTotal(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

// An initiation rejected before any finalization attempt must count against
// the initiation metric only.
func TestInitiationFailureDoesNotCountAsFinalization(t *testing.T) {
	finalizedBefore := counterTotal(t, "orders_finalized_total")
	initiatedBefore := counterTotal(t, "checkout_initiations_total")

	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, price, stock FROM products WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "stock"}).
			AddRow(1, "Keyboard", 100.00, 1))

	router := newCheckoutRouter(t, db, &stubStore{}, &stubGateway{}, &stubFinalizer{})

	req := httptest.NewRequest(http.MethodPost, "/checkout/card", bytes.NewReader(cardCheckoutBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := counterTotal(t, "orders_finalized_total"); got != finalizedBefore {
		t.Errorf("orders_finalized_total moved from %v to %v on an initiation failure", finalizedBefore, got)
	}
	if got := counterTotal(t, "checkout_initiations_total"); got != initiatedBefore+1 {
		t.Errorf("checkout_initiations_total = %v, want %v", got, initiatedBefore+1)
	}
}
