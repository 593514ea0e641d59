package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap/zaptest"

	"shop-svc/checkout"
	"shop-svc/models"
)

func newOrderRouter(t *testing.T, db *sqlx.DB, finalizer *stubFinalizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewOrderHandler(db, finalizer, zaptest.NewLogger(t))
	router := gin.New()
	router.POST("/orders", handler.CreateOrder)
	router.GET("/orders/:orderId", handler.GetOrder)
	router.PUT("/orders/:id/status", handler.UpdateOrderStatus)
	return router
}

func orderRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "order_id", "user_id", "status", "sub_total", "shipping_fee", "total_amount",
		"full_name", "email", "phone", "address", "state", "country",
		"payment_method", "payment_transaction_id", "paid",
		"created_at", "updated_at",
	}).AddRow(
		1, "ORD-12345-ABCDEF", nil, "pending", 255.00, 15.00, 270.00,
		"Ada Obi", "ada@example.com", "+2348012345678", "12 Marina Road", "Lagos", "Nigeria",
		"card", "4242", true,
		now, now,
	)
}

func TestGetOrderByNumber(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM orders WHERE UPPER\\(order_id\\) = UPPER\\(\\$1\\)").
		WithArgs("ord-12345-abcdef").
		WillReturnRows(orderRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, order_id, product_id, product_name, quantity, price_at_purchase, variation FROM order_items WHERE order_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "quantity", "price_at_purchase", "variation"}).
			AddRow(1, 1, 1, "Keyboard", 2, 100.00, nil).
			AddRow(2, 1, 2, "Mouse", 1, 55.00, nil))

	router := newOrderRouter(t, db, &stubFinalizer{})

	// Lookup is case-insensitive.
	req := httptest.NewRequest(http.MethodGet, "/orders/ord-12345-abcdef", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var order models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if order.OrderID != "ORD-12345-ABCDEF" {
		t.Errorf("order_id = %q", order.OrderID)
	}
	if order.TotalAmount != 270.00 {
		t.Errorf("total_amount = %.2f, want 270.00", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Errorf("items = %d, want 2", len(order.Items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM orders WHERE UPPER\\(order_id\\) = UPPER\\(\\$1\\)").
		WithArgs("ORD-00000-000000").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	router := newOrderRouter(t, db, &stubFinalizer{})

	req := httptest.NewRequest(http.MethodGet, "/orders/ORD-00000-000000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCreateOrderRejectsCardMethod(t *testing.T) {
	db, _ := newMockDB(t)
	finalizer := &stubFinalizer{}
	router := newOrderRouter(t, db, finalizer)

	body, _ := json.Marshal(map[string]any{
		"items":          []map[string]any{{"product_id": 1, "quantity": 1}},
		"payment_method": "card",
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if finalizer.calls != 0 {
		t.Errorf("finalizer calls = %d, want 0", finalizer.calls)
	}
}

func TestCreateOrderDirectCheckout(t *testing.T) {
	db, _ := newMockDB(t)
	finalizer := &stubFinalizer{result: &checkout.Result{
		OrderID: "ORD-12345-ABCDEF",
		Order:   &models.Order{OrderID: "ORD-12345-ABCDEF"},
	}}
	router := newOrderRouter(t, db, finalizer)

	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{{"product_id": 1, "quantity": 2}},
		"shipping_address": map[string]string{
			"full_name": "Ada Obi",
			"email":     "ada@example.com",
			"phone":     "+2348012345678",
			"address":   "12 Marina Road",
			"state":     "Lagos",
			"country":   "Nigeria",
		},
		"shipping_fee":   15.0,
		"payment_method": "cash_on_delivery",
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if finalizer.lastTx != "" {
		t.Errorf("direct checkout passed tx_ref %q, want empty", finalizer.lastTx)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["order_id"] != "ORD-12345-ABCDEF" {
		t.Errorf("order_id = %q", resp["order_id"])
	}
}

func TestCreateOrderStockErrorMapsTo400(t *testing.T) {
	db, _ := newMockDB(t)
	finalizer := &stubFinalizer{err: &checkout.InsufficientStockError{
		ProductID: 1, ProductName: "Keyboard", Requested: 5, Available: 2,
	}}
	router := newOrderRouter(t, db, finalizer)

	body, _ := json.Marshal(map[string]any{
		"items":          []map[string]any{{"product_id": 1, "quantity": 5}},
		"payment_method": "bank_transfer",
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2")).
		WithArgs("shipped", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	router := newOrderRouter(t, db, &stubFinalizer{})

	body, _ := json.Marshal(map[string]string{"status": "shipped"})
	req := httptest.NewRequest(http.MethodPut, "/orders/1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	// Unknown lifecycle states are rejected before touching the database.
	body, _ = json.Marshal(map[string]string{"status": "teleported"})
	req = httptest.NewRequest(http.MethodPut, "/orders/1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid status", w.Code)
	}
}
