package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("PAYMENT_GATEWAY_URL", srv.URL)
	t.Setenv("PAYMENT_GATEWAY_SECRET_KEY", "sk_test")
	return NewClient(zaptest.NewLogger(t))
}

func TestCreatePaymentLink(t *testing.T) {
	var gotAuth string
	var gotPayload paymentPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]string{"link": "https://pay.example.com/abc"},
		})
	}))

	link, err := client.CreatePaymentLink(context.Background(), PaymentLinkRequest{
		Amount:      270.00,
		Email:       "ada@example.com",
		Name:        "Ada Obi",
		TxRef:       "TX-1",
		RedirectURL: "https://shop.example.com/complete",
	})
	if err != nil {
		t.Fatalf("CreatePaymentLink returned error: %v", err)
	}
	if link != "https://pay.example.com/abc" {
		t.Errorf("link = %q", link)
	}
	if gotAuth != "Bearer sk_test" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotPayload.TxRef != "TX-1" || gotPayload.Amount != 270.00 {
		t.Errorf("payload = %+v", gotPayload)
	}
	if gotPayload.Currency != "NGN" {
		t.Errorf("currency = %q, want default NGN", gotPayload.Currency)
	}
}

func TestCreatePaymentLinkServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.CreatePaymentLink(context.Background(), PaymentLinkRequest{TxRef: "TX-1"})
	if err == nil {
		t.Fatal("expected error on gateway 502")
	}
}

func TestVerifyTransactionSuccessful(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/4242/verify" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"status":   "successful",
				"tx_ref":   "TX-1",
				"flw_ref":  "FLW-001",
				"amount":   270.0,
				"currency": "NGN",
			},
		})
	}))

	v, err := client.VerifyTransaction(context.Background(), "4242")
	if err != nil {
		t.Fatalf("VerifyTransaction returned error: %v", err)
	}
	if v == nil {
		t.Fatal("verification is nil for successful charge")
	}
	if v.TxRef != "TX-1" || v.GatewayRef != "FLW-001" {
		t.Errorf("verification = %+v", v)
	}
}

func TestVerifyTransactionFailedCharge(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"status": "failed", "tx_ref": "TX-1"},
		})
	}))

	v, err := client.VerifyTransaction(context.Background(), "4242")
	if err != nil {
		t.Fatalf("VerifyTransaction returned error: %v", err)
	}
	if v != nil {
		t.Errorf("verification = %+v, want nil for failed charge", v)
	}
}

func TestVerifyTransactionUnknownID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	v, err := client.VerifyTransaction(context.Background(), "nope")
	if err != nil {
		t.Fatalf("VerifyTransaction returned error: %v", err)
	}
	if v != nil {
		t.Errorf("verification = %+v, want nil for unknown id", v)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 5; i++ {
		_, _ = client.VerifyTransaction(context.Background(), "4242")
	}

	// The breaker now rejects without reaching the server.
	_, err := client.VerifyTransaction(context.Background(), "4242")
	if err == nil {
		t.Fatal("expected breaker to reject the call")
	}
}
