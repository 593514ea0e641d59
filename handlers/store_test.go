package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap/zaptest"
)

func newStoreRouter(t *testing.T, db *sqlx.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewStoreHandler(db, zaptest.NewLogger(t))
	router := gin.New()
	router.GET("/store", handler.GetStoreSettings)
	router.PUT("/admin/store", handler.UpdateStoreSettings)
	return router
}

func storeSettingsRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "banner", "logo",
		"facebook", "twitter", "instagram", "linkedin", "whatsapp",
		"shipping_standard", "shipping_express",
		"address", "city", "state", "country", "zip_code", "phone", "email", "business_id", "updated_at",
	}).AddRow(
		1, "Mini Shop", "Everything in one place", "https://cdn.example.com/banner.png", "https://cdn.example.com/logo.png",
		"", "", "", "", "",
		55.00, 120.00,
		"12 Marina Road", "Lagos", "Lagos", "Nigeria", "100001", "+2348012345678", "hello@example.com", "", time.Now(),
	)
}

func TestGetStoreSettings(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM store_settings WHERE id = 1").
		WillReturnRows(storeSettingsRow())

	router := newStoreRouter(t, db)
	req := httptest.NewRequest(http.MethodGet, "/store", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["name"] != "Mini Shop" {
		t.Errorf("name = %v, want Mini Shop", resp["name"])
	}
	if resp["shipping_standard"] != 55.00 {
		t.Errorf("shipping_standard = %v, want 55", resp["shipping_standard"])
	}
}

func TestGetStoreSettingsUnconfigured(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM store_settings WHERE id = 1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	router := newStoreRouter(t, db)
	req := httptest.NewRequest(http.MethodGet, "/store", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before the store is configured", w.Code)
	}
}

func TestUpdateStoreSettingsUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO store_settings").
		WillReturnRows(storeSettingsRow())

	router := newStoreRouter(t, db)
	body, _ := json.Marshal(map[string]any{
		"name":              "Mini Shop",
		"description":       "Everything in one place",
		"shipping_standard": 55.00,
		"shipping_express":  120.00,
		"email":             "hello@example.com",
	})
	req := httptest.NewRequest(http.MethodPut, "/admin/store", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateStoreSettingsRejectsBadPayload(t *testing.T) {
	db, _ := newMockDB(t)
	router := newStoreRouter(t, db)

	// Missing required name and email.
	req := httptest.NewRequest(http.MethodPut, "/admin/store", bytes.NewReader([]byte(`{"description":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
