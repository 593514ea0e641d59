package handlers

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shop-svc/checkout"
	"shop-svc/middleware"
	"shop-svc/models"
)

// SignatureHeader carries the provider's HMAC-SHA512 of the raw payload.
const SignatureHeader = "X-Webhook-Signature"

type WebhookHandler struct {
	store     purchaseStore
	finalizer orderFinalizer
	secret    []byte
	logger    *zap.Logger
}

func NewWebhookHandler(store purchaseStore, finalizer orderFinalizer, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		store:     store,
		finalizer: finalizer,
		secret:    []byte(secret),
		logger:    logger,
	}
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID         int64   `json:"id"`
		Status     string  `json:"status"`
		TxRef      string  `json:"tx_ref"`
		GatewayRef string  `json:"flw_ref"`
		Amount     float64 `json:"amount"`
		Currency   string  `json:"currency"`
	} `json:"data"`
}

// HandlePaymentWebhook processes asynchronous charge notifications from the
// gateway. The signature is checked against the raw body before anything
// else runs; duplicates and ignorable events are acknowledged with 200 so
// the provider stops retrying, while genuine internal failures return 500
// to request a retry.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "HandlePaymentWebhook")
	defer span.End()

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if !h.validSignature(body, c.GetHeader(SignatureHeader)) {
		middleware.RecordWebhookEvent("invalid_signature")
		h.logger.Warn("Webhook signature mismatch", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		middleware.RecordWebhookEvent("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	span.SetAttributes(
		attribute.String("webhook.event", event.Event),
		attribute.String("webhook.tx_ref", event.Data.TxRef),
	)

	if event.Event != "charge.completed" || event.Data.Status != "successful" {
		middleware.RecordWebhookEvent("ignored")
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}

	purchase, err := h.store.PurchaseByRef(ctx, event.Data.TxRef)
	if err != nil {
		span.RecordError(err)
		middleware.RecordWebhookEvent("error")
		h.logger.Error("Failed to load pending purchase", zap.String("tx_ref", event.Data.TxRef), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if purchase == nil {
		// Unknown or already-expired reference: nothing to do, and a retry
		// will not change that.
		middleware.RecordWebhookEvent("unknown_ref")
		h.logger.Warn("Webhook for unknown transaction reference", zap.String("tx_ref", event.Data.TxRef))
		c.JSON(http.StatusOK, gin.H{"message": "Unknown transaction reference"})
		return
	}

	// Webhooks report the amount actually charged; a charge below the
	// quoted total must not settle the purchase. Retrying cannot change
	// the amount, so acknowledge and leave the purchase for support.
	if event.Data.Amount < purchase.Amount {
		middleware.RecordWebhookEvent("amount_mismatch")
		h.logger.Warn("Webhook charge below quoted total",
			zap.String("tx_ref", purchase.TxRef),
			zap.Float64("charged", event.Data.Amount),
			zap.Float64("expected", purchase.Amount),
		)
		c.JSON(http.StatusOK, gin.H{"message": "Charged amount does not cover the order total"})
		return
	}

	var data checkout.OrderData
	if err := json.Unmarshal(purchase.OrderData, &data); err != nil {
		span.RecordError(err)
		middleware.RecordWebhookEvent("error")
		h.logger.Error("Corrupt pending purchase payload", zap.String("tx_ref", purchase.TxRef), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"message": "Unprocessable purchase payload"})
		return
	}

	result, err := h.finalizer.Finalize(ctx, data,
		checkout.PaymentData{
			Method:        models.PaymentMethodCard,
			TransactionID: strconv.FormatInt(event.Data.ID, 10),
			Paid:          true,
		},
		purchase.TxRef,
	)
	if err != nil {
		span.RecordError(err)
		if permanentFinalizeError(err) {
			// Retrying the delivery cannot fix bad data or missing stock;
			// acknowledge and leave the purchase pending for support.
			middleware.RecordWebhookEvent("rejected")
			h.logger.Error("Webhook finalization rejected",
				zap.String("tx_ref", purchase.TxRef), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"message": "Event could not be processed"})
			return
		}
		middleware.RecordWebhookEvent("error")
		h.logger.Error("Webhook finalization failed",
			zap.String("tx_ref", purchase.TxRef), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if result.AlreadyProcessed {
		middleware.RecordWebhookEvent("duplicate")
		middleware.RecordOrderFinalized("duplicate")
		c.JSON(http.StatusOK, gin.H{
			"message":  "Transaction already processed",
			"order_id": result.OrderID,
		})
		return
	}

	middleware.RecordWebhookEvent("processed")
	middleware.RecordOrderFinalized("success")
	h.logger.Info("Webhook order finalized",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("tx_ref", purchase.TxRef),
		zap.String("order_id", result.OrderID),
	)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Processed",
		"order_id": result.OrderID,
	})
}

func (h *WebhookHandler) validSignature(body []byte, signature string) bool {
	if signature == "" || len(h.secret) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func permanentFinalizeError(err error) bool {
	var validationErr *checkout.ValidationError
	var notFoundErr *checkout.NotFoundError
	var stockErr *checkout.InsufficientStockError
	return errors.As(err, &validationErr) || errors.As(err, &notFoundErr) || errors.As(err, &stockErr)
}
