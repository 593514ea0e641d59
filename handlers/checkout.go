package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shop-svc/checkout"
	"shop-svc/gateway"
	"shop-svc/middleware"
	"shop-svc/models"
)

// purchaseStore is the slice of the ledger the checkout entry points use
// outside of finalization.
type purchaseStore interface {
	CreatePendingPurchase(ctx context.Context, txRef string, orderData json.RawMessage, amount float64) error
	PurchaseByRef(ctx context.Context, txRef string) (*models.PendingPurchase, error)
}

// paymentGateway abstracts the hosted-payment provider for tests.
type paymentGateway interface {
	CreatePaymentLink(ctx context.Context, req gateway.PaymentLinkRequest) (string, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Verification, error)
}

type CheckoutHandler struct {
	db        *sqlx.DB
	store     purchaseStore
	gateway   paymentGateway
	finalizer orderFinalizer
	logger    *zap.Logger
}

func NewCheckoutHandler(db *sqlx.DB, store purchaseStore, gw paymentGateway, finalizer orderFinalizer, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		db:        db,
		store:     store,
		gateway:   gw,
		finalizer: finalizer,
		logger:    logger,
	}
}

type CardCheckoutRequest struct {
	UserID          *int64                  `json:"user_id"`
	Items           []checkout.LineInput    `json:"items" binding:"required"`
	ShippingAddress *models.ShippingAddress `json:"shipping_address"`
	ShippingFee     float64                 `json:"shipping_fee" binding:"gte=0"`
}

// InitiateCardCheckout validates the purchase the same way the finalizer
// will, stages a pending purchase under a fresh tx_ref, and returns the
// hosted payment link. No stock is reserved here; stock moves only at
// finalization, after the gateway confirms payment.
func (h *CheckoutHandler) InitiateCardCheckout(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "InitiateCardCheckout")
	defer span.End()

	var req CardCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data := checkout.OrderData{
		UserID:          req.UserID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		ShippingFee:     req.ShippingFee,
	}
	if err := data.Validate(); err != nil {
		var validationErr *checkout.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address, err := h.resolveAddress(ctx, &data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Capture the resolved snapshot so a later profile edit cannot change
	// what the customer is charged for.
	data.ShippingAddress = address

	total, err := h.payableTotal(ctx, data)
	if err != nil {
		writeInitiationError(c, h.logger, err)
		return
	}

	txRef := "TX-" + uuid.NewString()
	payload, err := json.Marshal(data)
	if err != nil {
		span.RecordError(err)
		middleware.RecordCheckoutInitiation("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if err := h.store.CreatePendingPurchase(ctx, txRef, payload, total); err != nil {
		span.RecordError(err)
		middleware.RecordCheckoutInitiation("error")
		h.logger.Error("Failed to stage pending purchase", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	link, err := h.gateway.CreatePaymentLink(ctx, gateway.PaymentLinkRequest{
		Amount:      total,
		Email:       address.Email,
		Name:        address.FullName,
		TxRef:       txRef,
		RedirectURL: redirectURL(),
	})
	if err != nil {
		span.RecordError(err)
		middleware.RecordCheckoutInitiation("gateway_error")
		h.logger.Error("Failed to create payment link", zap.String("tx_ref", txRef), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable, please retry"})
		return
	}

	middleware.RecordCheckoutInitiation("success")
	span.SetAttributes(attribute.String("checkout.tx_ref", txRef))
	h.logger.Info("Card checkout initiated",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("tx_ref", txRef),
		zap.Float64("amount", total),
	)
	c.JSON(http.StatusOK, gin.H{
		"link":   link,
		"tx_ref": txRef,
	})
}

// CompleteCardCheckout handles the customer returning from the gateway.
// The provider transaction id is verified server-side before the staged
// purchase is finalized; the webhook may race this call, and whichever
// loses gets AlreadyProcessed from the finalizer.
func (h *CheckoutHandler) CompleteCardCheckout(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "CompleteCardCheckout")
	defer span.End()

	transactionID := c.Query("transaction_id")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required"})
		return
	}
	span.SetAttributes(attribute.String("payment.transaction_id", transactionID))

	verification, err := h.gateway.VerifyTransaction(ctx, transactionID)
	if err != nil {
		span.RecordError(err)
		middleware.RecordPaymentVerification("error")
		h.logger.Error("Payment verification failed", zap.String("transaction_id", transactionID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment verification unavailable, please retry"})
		return
	}
	if verification == nil {
		middleware.RecordPaymentVerification("failed")
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment was not successful"})
		return
	}
	middleware.RecordPaymentVerification("successful")

	purchase, err := h.store.PurchaseByRef(ctx, verification.TxRef)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load pending purchase", zap.String("tx_ref", verification.TxRef), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if purchase == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown or expired transaction reference"})
		return
	}

	// A successful status alone is not enough: anyone holding the public
	// key can run their own charge under the same tx_ref for a lower
	// amount. The charge must cover the total quoted at initiation.
	if verification.Amount < purchase.Amount {
		middleware.RecordPaymentVerification("amount_mismatch")
		h.logger.Warn("Charged amount below quoted total",
			zap.String("tx_ref", purchase.TxRef),
			zap.Float64("charged", verification.Amount),
			zap.Float64("expected", purchase.Amount),
		)
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Charged amount does not cover the order total"})
		return
	}

	var data checkout.OrderData
	if err := json.Unmarshal(purchase.OrderData, &data); err != nil {
		span.RecordError(err)
		h.logger.Error("Corrupt pending purchase payload", zap.String("tx_ref", purchase.TxRef), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result, err := h.finalizer.Finalize(ctx, data,
		checkout.PaymentData{
			Method:        models.PaymentMethodCard,
			TransactionID: transactionID,
			Paid:          true,
		},
		purchase.TxRef,
	)
	if err != nil {
		span.RecordError(err)
		writeFinalizeError(c, h.logger, err)
		return
	}

	if result.AlreadyProcessed {
		middleware.RecordOrderFinalized("duplicate")
		c.JSON(http.StatusOK, gin.H{
			"message":  "Transaction already processed",
			"order_id": result.OrderID,
		})
		return
	}

	middleware.RecordOrderFinalized("success")
	h.logger.Info("Card order finalized",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("tx_ref", purchase.TxRef),
		zap.String("order_id", result.OrderID),
	)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Order created successfully",
		"order_id": result.OrderID,
	})
}

// writeInitiationError maps pre-gateway failures onto HTTP responses. No
// finalization was attempted here, so these count against the initiation
// metric, not the finalization one.
func writeInitiationError(c *gin.Context, logger *zap.Logger, err error) {
	var notFoundErr *checkout.NotFoundError
	var stockErr *checkout.InsufficientStockError

	switch {
	case errors.As(err, &notFoundErr):
		middleware.RecordCheckoutInitiation("not_found")
		c.JSON(http.StatusBadRequest, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &stockErr):
		middleware.RecordCheckoutInitiation("insufficient_stock")
		c.JSON(http.StatusBadRequest, gin.H{"error": stockErr.Error()})
	default:
		middleware.RecordCheckoutInitiation("error")
		logger.Error("Card checkout initiation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// resolveAddress mirrors the finalizer's fallback so a card checkout fails
// fast before the customer is sent to the gateway.
func (h *CheckoutHandler) resolveAddress(ctx context.Context, data *checkout.OrderData) (*models.ShippingAddress, error) {
	if data.ShippingAddress != nil {
		return data.ShippingAddress, nil
	}
	if data.UserID != nil {
		var user models.User
		err := h.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", *data.UserID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil && user.HasCompleteProfile() {
			return &models.ShippingAddress{
				FullName: user.Name,
				Email:    user.Email,
				Phone:    user.Phone,
				Address:  user.Address,
				State:    user.State,
				Country:  user.Country,
			}, nil
		}
	}
	return nil, &checkout.ValidationError{Reason: "shipping address is required"}
}

// payableTotal prices the cart at current prices for the payment link. The
// finalizer reprices at finalization time; for the short window between the
// two the amounts match unless the catalog changes mid-checkout.
func (h *CheckoutHandler) payableTotal(ctx context.Context, data checkout.OrderData) (float64, error) {
	var subTotal float64
	for _, line := range data.Items {
		var product models.Product
		err := h.db.GetContext(ctx, &product,
			"SELECT id, name, price, stock FROM products WHERE id = $1", line.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &checkout.NotFoundError{Resource: "product", Ref: itoa(line.ProductID)}
		}
		if err != nil {
			return 0, err
		}
		if product.Stock < line.Quantity {
			return 0, &checkout.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Stock,
			}
		}
		subTotal += float64(line.Quantity) * product.Price
	}
	return subTotal + data.ShippingFee, nil
}
