package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"shop-svc/circuitbreaker"
)

// Client talks to the hosted-payment provider. Requests are bounded by the
// http.Client timeout and guarded by a circuit breaker; a timeout is a
// transient failure the caller may retry.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	breaker   *circuitbreaker.Breaker
	logger    *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		baseURL:   getEnv("PAYMENT_GATEWAY_URL", "https://api.flutterwave.com/v3"),
		secretKey: getEnv("PAYMENT_GATEWAY_SECRET_KEY", ""),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New(5, 30*time.Second),
		logger:  logger,
	}
}

// PaymentLinkRequest scopes a hosted payment session to one checkout
// attempt. TxRef correlates the eventual gateway callbacks to the staged
// purchase.
type PaymentLinkRequest struct {
	Amount      float64
	Currency    string
	Email       string
	Name        string
	TxRef       string
	RedirectURL string
}

// Verification is the provider's account of a completed charge.
type Verification struct {
	Status     string  `json:"status"`
	TxRef      string  `json:"tx_ref"`
	GatewayRef string  `json:"flw_ref"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
}

type paymentPayload struct {
	TxRef       string          `json:"tx_ref"`
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	RedirectURL string          `json:"redirect_url"`
	Customer    paymentCustomer `json:"customer"`
}

type paymentCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type linkResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link string `json:"link"`
	} `json:"data"`
}

type verifyResponse struct {
	Status string       `json:"status"`
	Data   Verification `json:"data"`
}

// CreatePaymentLink requests a hosted payment page for the given amount and
// returns the redirect link.
func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (string, error) {
	currency := req.Currency
	if currency == "" {
		currency = getEnv("PAYMENT_CURRENCY", "NGN")
	}

	payload := paymentPayload{
		TxRef:       req.TxRef,
		Amount:      req.Amount,
		Currency:    currency,
		RedirectURL: req.RedirectURL,
		Customer:    paymentCustomer{Email: req.Email, Name: req.Name},
	}

	var link string
	err := c.breaker.Execute(func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("payment link request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
		}

		var decoded linkResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode payment link response: %w", err)
		}
		if decoded.Data.Link == "" {
			return fmt.Errorf("payment gateway returned no link")
		}
		link = decoded.Data.Link
		return nil
	})
	if err != nil {
		return "", err
	}
	return link, nil
}

// VerifyTransaction asks the provider whether the charge behind
// transactionID actually succeeded. A non-successful charge yields
// (nil, nil): verification completed, payment did not.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*Verification, error) {
	var verification *Verification
	err := c.breaker.Execute(func() error {
		url := fmt.Sprintf("%s/transactions/%s/verify", c.baseURL, transactionID)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("verification request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
		}

		var decoded verifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode verification response: %w", err)
		}
		if decoded.Data.Status == "successful" {
			verification = &decoded.Data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verification, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
