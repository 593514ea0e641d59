package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shop-svc/checkout"
	"shop-svc/middleware"
	"shop-svc/models"
)

// orderFinalizer lets tests stub out the finalization pipeline.
type orderFinalizer interface {
	Finalize(ctx context.Context, data checkout.OrderData, payment checkout.PaymentData, txRef string) (*checkout.Result, error)
}

const orderColumns = `id, order_id, user_id, status, sub_total, shipping_fee, total_amount,
	full_name, email, phone, address, state, country,
	payment_method, COALESCE(payment_transaction_id, '') AS payment_transaction_id, paid,
	created_at, updated_at`

type OrderHandler struct {
	db        *sqlx.DB
	finalizer orderFinalizer
	logger    *zap.Logger
}

func NewOrderHandler(db *sqlx.DB, finalizer orderFinalizer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:        db,
		finalizer: finalizer,
		logger:    logger,
	}
}

type CreateOrderRequest struct {
	UserID          *int64                  `json:"user_id"`
	Items           []checkout.LineInput    `json:"items" binding:"required"`
	ShippingAddress *models.ShippingAddress `json:"shipping_address"`
	ShippingFee     float64                 `json:"shipping_fee" binding:"gte=0"`
	PaymentMethod   models.PaymentMethod    `json:"payment_method" binding:"required"`
}

// CreateOrder is the direct checkout path for non-card payment methods:
// the order finalizes synchronously, unpaid.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PaymentMethod == models.PaymentMethodCard {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Card payments must go through the card checkout endpoint"})
		return
	}

	span.SetAttributes(attribute.Int("items.count", len(req.Items)))

	result, err := h.finalizer.Finalize(ctx,
		checkout.OrderData{
			UserID:          req.UserID,
			Items:           req.Items,
			ShippingAddress: req.ShippingAddress,
			ShippingFee:     req.ShippingFee,
		},
		checkout.PaymentData{Method: req.PaymentMethod, Paid: false},
		"",
	)
	if err != nil {
		span.RecordError(err)
		writeFinalizeError(c, h.logger, err)
		return
	}

	middleware.RecordOrderFinalized("success")
	span.SetAttributes(attribute.String("order.order_id", result.OrderID))
	h.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", result.OrderID),
	)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Order created successfully",
		"order_id": result.OrderID,
	})
}

// writeFinalizeError maps the checkout error taxonomy onto HTTP responses.
func writeFinalizeError(c *gin.Context, logger *zap.Logger, err error) {
	var validationErr *checkout.ValidationError
	var notFoundErr *checkout.NotFoundError
	var stockErr *checkout.InsufficientStockError

	switch {
	case errors.As(err, &validationErr):
		middleware.RecordOrderFinalized("validation_error")
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.As(err, &notFoundErr):
		middleware.RecordOrderFinalized("not_found")
		c.JSON(http.StatusBadRequest, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &stockErr):
		middleware.RecordOrderFinalized("insufficient_stock")
		c.JSON(http.StatusBadRequest, gin.H{"error": stockErr.Error()})
	default:
		middleware.RecordOrderFinalized("error")
		logger.Error("Order finalization failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// GetOrder looks an order up by its human-readable order number,
// case-insensitively.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID := strings.TrimSpace(c.Param("orderId"))
	span.SetAttributes(attribute.String("order.order_id", orderID))

	var order models.Order
	err := h.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE UPPER(order_id) = UPPER($1)", orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.loadItems(ctx, &order); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load order items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetUserOrders lists every order belonging to one user.
func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetUserOrders")
	defer span.End()

	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	span.SetAttributes(attribute.Int64("user.id", userID))

	orders := []models.Order{}
	err = h.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get user orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetLatestOrders returns the 20 most recent orders (admin dashboard).
func (h *OrderHandler) GetLatestOrders(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetLatestOrders")
	defer span.End()

	orders := []models.Order{}
	err := h.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT 20")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get latest orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetAllOrders lists every order (admin).
func (h *OrderHandler) GetAllOrders(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetAllOrders")
	defer span.End()

	orders := []models.Order{}
	err := h.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus moves an order through its lifecycle after
// finalization. The order content itself is immutable.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validOrderStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order status"})
		return
	}

	res, err := h.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		req.Status, id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated successfully"})
}

// DeleteOrder is an administrative escape hatch; the normal flow never
// deletes orders.
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "DeleteOrder")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	res, err := h.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}

func (h *OrderHandler) loadItems(ctx context.Context, order *models.Order) error {
	return h.db.SelectContext(ctx, &order.Items,
		"SELECT id, order_id, product_id, product_name, quantity, price_at_purchase, variation FROM order_items WHERE order_id = $1",
		order.ID)
}

func validOrderStatus(s models.OrderStatus) bool {
	switch s {
	case models.OrderStatusPending, models.OrderStatusProcessing,
		models.OrderStatusShipped, models.OrderStatusCompleted, models.OrderStatusCancelled:
		return true
	}
	return false
}
