package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAnalyticsHandler(db *sqlx.DB, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{db: db, logger: logger}
}

type salesSummary struct {
	TotalOrders   int64   `db:"total_orders" json:"total_orders"`
	PaidOrders    int64   `db:"paid_orders" json:"paid_orders"`
	TotalRevenue  float64 `db:"total_revenue" json:"total_revenue"`
	TotalProducts int64   `db:"total_products" json:"total_products"`
	TotalUsers    int64   `db:"total_users" json:"total_users"`
}

type monthlySales struct {
	Month   string  `db:"month" json:"month"`
	Orders  int64   `db:"orders" json:"orders"`
	Revenue float64 `db:"revenue" json:"revenue"`
}

type topProduct struct {
	ProductID   int64   `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	UnitsSold   int64   `db:"units_sold" json:"units_sold"`
	Revenue     float64 `db:"revenue" json:"revenue"`
}

// GetSummary is the admin dashboard headline card. Revenue counts paid
// orders only; unpaid cash-on-delivery orders show up once marked paid.
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetSummary")
	defer span.End()

	var summary salesSummary
	err := h.db.GetContext(ctx, &summary, `
		SELECT
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COUNT(*) FROM orders WHERE paid) AS paid_orders,
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE paid) AS total_revenue,
			(SELECT COUNT(*) FROM products) AS total_products,
			(SELECT COUNT(*) FROM users) AS total_users`)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to compute sales summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetMonthlySales buckets paid revenue by calendar month for the last year.
func (h *AnalyticsHandler) GetMonthlySales(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetMonthlySales")
	defer span.End()

	rows := []monthlySales{}
	err := h.db.SelectContext(ctx, &rows, `
		SELECT
			TO_CHAR(DATE_TRUNC('month', created_at), 'YYYY-MM') AS month,
			COUNT(*) AS orders,
			COALESCE(SUM(total_amount), 0) AS revenue
		FROM orders
		WHERE paid AND created_at >= NOW() - INTERVAL '12 months'
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to compute monthly sales", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// GetTopProducts ranks products by units sold across paid orders.
func (h *AnalyticsHandler) GetTopProducts(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetTopProducts")
	defer span.End()

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 10
	}

	rows := []topProduct{}
	err = h.db.SelectContext(ctx, &rows, `
		SELECT
			oi.product_id,
			oi.product_name,
			SUM(oi.quantity) AS units_sold,
			SUM(oi.quantity * oi.price_at_purchase) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.paid
		GROUP BY oi.product_id, oi.product_name
		ORDER BY units_sold DESC
		LIMIT $1`, limit)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to compute top products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, rows)
}
