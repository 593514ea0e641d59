package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shop-svc/models"
)

const purchaseColumns = `id, tx_ref, order_data, amount, status, gateway_ref, order_id, created_at`

// TransactionHandler exposes the pending-purchase ledger to support staff:
// which checkouts are stuck pending, which settled, which failed.
type TransactionHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTransactionHandler(db *sqlx.DB, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{db: db, logger: logger}
}

// GetTransactions pages through staged purchases, optionally filtered by
// status.
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetTransactions")
	defer span.End()

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	status := c.Query("status")
	span.SetAttributes(attribute.Int("page", page), attribute.String("status", status))

	purchases := []models.PendingPurchase{}
	if status != "" {
		switch models.PurchaseStatus(status) {
		case models.PurchaseStatusPending, models.PurchaseStatusSuccessful, models.PurchaseStatusFailed:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
		err = h.db.SelectContext(ctx, &purchases,
			"SELECT "+purchaseColumns+" FROM pending_purchases WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			status, limit, offset)
	} else {
		err = h.db.SelectContext(ctx, &purchases,
			"SELECT "+purchaseColumns+" FROM pending_purchases ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			limit, offset)
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":         page,
		"limit":        limit,
		"transactions": purchases,
	})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetTransaction")
	defer span.End()

	txRef := c.Param("txRef")
	span.SetAttributes(attribute.String("tx_ref", txRef))

	var purchase models.PendingPurchase
	err := h.db.GetContext(ctx, &purchase,
		"SELECT "+purchaseColumns+" FROM pending_purchases WHERE tx_ref = $1", txRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, purchase)
}
